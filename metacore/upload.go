package metacore

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"

	"metadisk.org/metatool/cidutil"
	"metadisk.org/metatool/convergence"
	"metadisk.org/metatool/internal/httpx"
	"metadisk.org/metatool/keys"
)

// MetakeySuffix is appended to the data hash to name the decryption key
// sidecar written for encrypted uploads.
const MetakeySuffix = ".metakey"

// Upload sends a local file to the node.
type Upload struct {
	Path string
	// Role is the three-digit file role; empty means DefaultFileRole.
	Role string
	// Encrypt uploads a convergently encrypted copy instead of the file.
	Encrypt bool
	// Secret, when set, keys the convergence hash (see convergence.DeriveKey).
	Secret []byte
	// KeyDir receives the <data_hash>.metakey sidecar of encrypted uploads.
	// Empty skips the sidecar.
	KeyDir string
	// MaxSize rejects larger files before any request. Zero means no limit.
	MaxSize    datasize.ByteSize
	Credential keys.Credential
}

func (*Upload) Name() string { return "upload" }

func (u *Upload) role() string {
	if u.Role == "" {
		return DefaultFileRole
	}
	return u.Role
}

func (u *Upload) Execute(ctx context.Context, c *Client) (Result, error) {
	op := u.Name()
	if err := requireCredential(op, u.Credential); err != nil {
		return Result{}, err
	}
	if err := ValidateFileRole(u.role()); err != nil {
		return Result{}, err
	}
	info, err := os.Stat(u.Path)
	if err != nil {
		return Result{}, newError(KindIO, op, "stat "+u.Path, err)
	}
	if info.IsDir() {
		return Result{}, usageError(op, nil, "%s is a directory", u.Path)
	}
	if u.MaxSize > 0 && uint64(info.Size()) > u.MaxSize.Bytes() {
		return Result{}, usageError(op, ErrFileTooLarge, "%s is %s, limit is %s",
			u.Path, datasize.ByteSize(info.Size()).HumanReadable(), u.MaxSize.HumanReadable())
	}

	src := u.Path
	var key []byte
	if u.Encrypt {
		tmp, err := copyToTemp(u.Path)
		if tmp != "" {
			defer os.Remove(tmp)
		}
		if err != nil {
			return Result{}, newError(KindIO, op, "copy for encryption", err)
		}
		key, err = convergence.EncryptFile(tmp, u.Secret)
		if err != nil {
			return Result{}, newError(KindCrypto, op, "encrypt copy", err)
		}
		src = tmp
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return Result{}, newError(KindIO, op, "read "+src, err)
	}
	dataHash := cidutil.DataHash(data)
	if key != nil {
		c.log.Info("file is encrypted", "data_hash", dataHash, "decryption_key", hex.EncodeToString(key))
		if err := u.writeMetakey(dataHash, key); err != nil {
			return Result{}, newError(KindIO, op, "write decryption key sidecar", err)
		}
	}

	header, err := authHeader(op, u.Credential, dataHash)
	if err != nil {
		return Result{}, err
	}
	body, contentType, err := multipartBody([][2]string{
		{"data_hash", dataHash},
		{"file_role", u.role()},
	}, "file_data", filepath.Base(u.Path), data)
	if err != nil {
		return Result{}, newError(KindIO, op, "build request body", err)
	}
	header.Set("Content-Type", contentType)

	resp, err := c.do(ctx, op, &httpx.Request{
		Method: http.MethodPost,
		Path:   PathFiles,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return Result{}, err
	}
	if key != nil && resp.StatusCode == http.StatusCreated {
		resp.Body = injectDecryptionKey(resp.Body, key)
	}
	return Result{Response: resp}, nil
}

func (u *Upload) writeMetakey(dataHash string, key []byte) error {
	if u.KeyDir == "" {
		return nil
	}
	if err := os.MkdirAll(u.KeyDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(u.KeyDir, dataHash+MetakeySuffix), key, 0o600)
}

// copyToTemp copies path into a new temporary file and returns its name. The
// name is returned even on error once the file exists, so callers can remove it.
func copyToTemp(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp("", "metatool-upload-*")
	if err != nil {
		return "", err
	}
	name := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return name, err
	}
	return name, out.Close()
}

func multipartBody(fields [][2]string, fileField, fileName string, data []byte) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// injectDecryptionKey adds the hex key to a JSON object body. Bodies that are
// not JSON objects are returned unchanged.
func injectDecryptionKey(body []byte, key []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return body
	}
	obj["decryption_key"] = hex.EncodeToString(key)
	out, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return body
	}
	return append(out, '\n')
}

