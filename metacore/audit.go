package metacore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"metadisk.org/metatool/internal/httpx"
	"metadisk.org/metatool/keys"
)

// Audit asks the node to prove it still holds a file: the node hashes the
// file content together with Seed and returns the digest.
type Audit struct {
	FileHash   string
	Seed       string
	Credential keys.Credential
}

func (*Audit) Name() string { return "audit" }

func (a *Audit) Execute(ctx context.Context, c *Client) (Result, error) {
	op := a.Name()
	if err := requireCredential(op, a.Credential); err != nil {
		return Result{}, err
	}
	if a.FileHash == "" || a.Seed == "" {
		return Result{}, usageError(op, nil, "file hash and challenge seed are required")
	}
	header, err := authHeader(op, a.Credential, a.FileHash)
	if err != nil {
		return Result{}, err
	}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	form := url.Values{}
	form.Set("data_hash", a.FileHash)
	form.Set("challenge_seed", a.Seed)

	resp, err := c.do(ctx, op, &httpx.Request{
		Method: http.MethodPost,
		Path:   PathAudit,
		Header: header,
		Body:   strings.NewReader(form.Encode()),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Response: resp}, nil
}

// AuditReply is the body of a successful audit.
type AuditReply struct {
	DataHash          string `json:"data_hash"`
	ChallengeSeed     string `json:"challenge_seed"`
	ChallengeResponse string `json:"challenge_response"`
}

// ParseAuditReply decodes an audit response body.
func ParseAuditReply(r *Response) (AuditReply, error) {
	var out AuditReply
	if r == nil {
		return out, usageError("audit", nil, "no response")
	}
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return out, newError(KindIO, "audit", "decode reply", err)
	}
	return out, nil
}

// ChallengeResponse computes the expected answer to an audit locally:
// hex(sha256(content || seed)).
func ChallengeResponse(content io.Reader, seed string) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, content); err != nil {
		return "", err
	}
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyAudit reports whether the node's challenge response matches the one
// computed from the local copy at path.
func VerifyAudit(reply AuditReply, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, newError(KindIO, "audit", "open "+path, err)
	}
	defer f.Close()
	want, err := ChallengeResponse(f, reply.ChallengeSeed)
	if err != nil {
		return false, newError(KindIO, "audit", "read "+path, err)
	}
	return strings.EqualFold(want, reply.ChallengeResponse), nil
}
