package metacore

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"metadisk.org/metatool/internal/httpx"
	"metadisk.org/metatool/keys"
)

// API paths, relative to a node's base URL.
const (
	PathFiles  = "/api/files/"
	PathNodeMe = "/api/nodes/me/"
	PathAudit  = "/api/audit/"
)

// Authentication headers.
const (
	HeaderSenderAddress = "sender-address"
	HeaderSignature     = "signature"
	// HeaderSendfile names the file a download should be saved as.
	HeaderSendfile = "X-Sendfile"
)

// UserAgent is sent with every request.
const UserAgent = "metatool/1.0"

// Operation is one request against one node.
type Operation interface {
	// Name is the CLI action name ("files", "upload", ...).
	Name() string
	// Execute runs the operation against c.
	Execute(ctx context.Context, c *Client) (Result, error)
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
	// Timeout bounds each request; zero uses httpx.DefaultTimeout, negative disables.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client talks to a single MetaCore node.
type Client struct {
	http *httpx.Client
	log  *slog.Logger
}

// NewClient creates a client bound to baseURL.
func NewClient(baseURL string, opts ClientOptions) (*Client, error) {
	hopts := []httpx.Option{httpx.WithHeaders(http.Header{"User-Agent": {UserAgent}})}
	if opts.HTTPClient != nil {
		hopts = append(hopts, httpx.WithHTTPClient(opts.HTTPClient))
	}
	switch {
	case opts.Timeout > 0:
		hopts = append(hopts, httpx.WithTimeout(opts.Timeout))
	case opts.Timeout < 0:
		hopts = append(hopts, httpx.WithTimeout(0))
	}
	hc, err := httpx.NewClient(baseURL, hopts...)
	if err != nil {
		return nil, usageError("client", err, "invalid node URL %q", baseURL)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{http: hc, log: logger.With("node", hc.BaseURL())}, nil
}

// BaseURL returns the node URL the client is bound to.
func (c *Client) BaseURL() string { return c.http.BaseURL() }

// URL returns the absolute URL for path and query on this node.
func (c *Client) URL(path string, q url.Values) (string, error) {
	return c.http.URL(path, q)
}

func (c *Client) do(ctx context.Context, op string, req *httpx.Request) (*Response, error) {
	c.log.Debug("request", "op", op, "method", req.Method, "path", req.Path)
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, newError(KindTransport, op, "request to "+c.http.BaseURL()+" failed", err)
	}
	c.log.Debug("response", "op", op, "status", resp.StatusCode, "bytes", len(resp.Body))
	return fromHTTPX(resp), nil
}

// authHeader signs message with cred and returns the authentication headers.
func authHeader(op string, cred keys.Credential, message string) (http.Header, error) {
	addr, err := cred.Address()
	if err != nil {
		return nil, newError(KindCrypto, op, "derive sender address", err)
	}
	sig, err := cred.Sign(message)
	if err != nil {
		return nil, newError(KindCrypto, op, "sign request", err)
	}
	h := make(http.Header)
	h.Set(HeaderSenderAddress, addr)
	h.Set(HeaderSignature, sig)
	return h, nil
}

// checkCredential rejects a credential with only one half set.
func checkCredential(op string, cred keys.Credential) error {
	if err := cred.Validate(); err != nil {
		return usageError(op, ErrInvalidArgumentCombination, "signing key and credential provider must be given together")
	}
	return nil
}

func requireCredential(op string, cred keys.Credential) error {
	if err := checkCredential(op, cred); err != nil {
		return err
	}
	if cred.IsZero() {
		return usageError(op, ErrMissingCredential, "no credential")
	}
	return nil
}
