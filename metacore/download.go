package metacore

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"metadisk.org/metatool/convergence"
	"metadisk.org/metatool/internal/httpx"
	"metadisk.org/metatool/keys"
	"metadisk.org/metatool/storage"
)

// Download fetches a stored file by its data hash.
type Download struct {
	FileHash string
	// DecryptionKey is the hex key sent as the decryption_key query parameter.
	DecryptionKey string
	// RenameFile is sent as the file_alias query parameter.
	RenameFile string
	// Link returns the request URL instead of downloading.
	Link bool
	// Credential is optional; when complete the request is signed.
	Credential keys.Credential
	// SkipLocalDecrypt leaves the saved file as the node sent it even when
	// DecryptionKey is set.
	SkipLocalDecrypt bool
	// OutDir resolves relative X-Sendfile names. Empty means the working
	// directory.
	OutDir string
	// Mirror, when set, receives a copy of the saved file.
	Mirror storage.CAS
}

func (*Download) Name() string { return "download" }

// Query returns the request query: only the parameters that are set.
func (d *Download) Query() url.Values {
	q := url.Values{}
	if d.DecryptionKey != "" {
		q.Set("decryption_key", d.DecryptionKey)
	}
	if d.RenameFile != "" {
		q.Set("file_alias", d.RenameFile)
	}
	return q
}

func (d *Download) path() string {
	return PathFiles + url.PathEscape(d.FileHash)
}

func (d *Download) Execute(ctx context.Context, c *Client) (Result, error) {
	op := d.Name()
	if err := checkCredential(op, d.Credential); err != nil {
		return Result{}, err
	}
	if d.FileHash == "" {
		return Result{}, usageError(op, nil, "file hash is required")
	}
	var key []byte
	if d.DecryptionKey != "" && !d.SkipLocalDecrypt && !d.Link {
		k, err := convergence.ParseKeyHex(d.DecryptionKey)
		if err != nil {
			return Result{}, newError(KindUsage, op, "decryption key", err)
		}
		key = k
	}

	if d.Link {
		link, err := c.URL(d.path(), d.Query())
		if err != nil {
			return Result{}, usageError(op, err, "build link")
		}
		return TextResult(link), nil
	}

	var header http.Header
	if d.Credential.Complete() {
		h, err := authHeader(op, d.Credential, d.FileHash)
		if err != nil {
			return Result{}, err
		}
		header = h
	}
	resp, err := c.do(ctx, op, &httpx.Request{
		Method: http.MethodGet,
		Path:   d.path(),
		Query:  d.Query(),
		Header: header,
	})
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Response: resp}, nil
	}

	dest, err := d.destination(resp.Header.Get(HeaderSendfile))
	if err != nil {
		return Result{}, newError(KindIO, op, "resolve output path", err)
	}
	if dir, outside := d.outsideOutDir(dest); outside {
		c.log.Warn("node named a save path outside the output directory", "path", dest, "dir", dir)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{}, newError(KindIO, op, "create output directory", err)
	}
	if err := os.WriteFile(dest, resp.Body, 0o644); err != nil {
		return Result{}, newError(KindIO, op, "write "+dest, err)
	}
	c.log.Info("saved", "path", dest, "bytes", len(resp.Body))

	if key != nil {
		if err := convergence.DecryptFile(dest, key); err != nil {
			return Result{}, newError(KindCrypto, op, "decrypt "+dest, err)
		}
		c.log.Debug("decrypted in place", "path", dest)
	}
	if d.Mirror != nil {
		d.mirror(ctx, c, dest)
	}
	return TextResult(dest), nil
}

// destination resolves the save path named by the node. A missing header
// falls back to the file hash.
func (d *Download) destination(sendfile string) (string, error) {
	name := sendfile
	if name == "" {
		name = d.FileHash
	}
	if !filepath.IsAbs(name) && d.OutDir != "" {
		name = filepath.Join(d.OutDir, name)
	}
	return filepath.Abs(name)
}

// outsideOutDir reports whether dest escapes OutDir, or the working
// directory when OutDir is empty. The file is still written there.
func (d *Download) outsideOutDir(dest string) (string, bool) {
	dir, err := filepath.Abs(d.OutDir)
	if d.OutDir == "" {
		dir, err = os.Getwd()
	}
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(dir, dest)
	if err != nil {
		return dir, true
	}
	return dir, rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// mirror copies the saved file into the mirror store. Failures are logged
// and do not fail the download.
func (d *Download) mirror(ctx context.Context, c *Client, path string) {
	b, err := os.ReadFile(path)
	if err != nil {
		c.log.Warn("mirror: read saved file", "path", path, "err", err)
		return
	}
	id, err := d.Mirror.Put(ctx, b)
	if err != nil {
		c.log.Warn("mirror: put", "path", path, "err", err)
		return
	}
	c.log.Info("mirrored", "path", path, "cid", id.String())
}
