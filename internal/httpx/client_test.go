package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLReplacesBasePath(t *testing.T) {
	c, err := NewClient("http://node2.metadisk.org/some/prefix/")
	require.NoError(t, err)

	got, err := c.URL("/api/files/", nil)
	require.NoError(t, err)
	require.Equal(t, "http://node2.metadisk.org/api/files/", got)

	got, err = c.URL("api/nodes/me/", nil)
	require.NoError(t, err)
	require.Equal(t, "http://node2.metadisk.org/api/nodes/me/", got)

	got, err = c.URL("/api/files/abc", url.Values{"file_alias": {"a b.txt"}})
	require.NoError(t, err)
	require.Equal(t, "http://node2.metadisk.org/api/files/abc?file_alias=a+b.txt", got)
}

func TestNewClientRejectsRelativeBase(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	_, err = NewClient("node2.metadisk.org")
	require.Error(t, err)
}

func TestDoReturnsErrorStatusAsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Default"))
		assert.Equal(t, "v", r.Header.Get("X-Req"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"missing"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHeaders(http.Header{"X-Default": {"yes"}}))
	require.NoError(t, err)
	resp, err := c.Do(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/api/files/x",
		Header: http.Header{"X-Req": {"v"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Equal(t, `{"error":"missing"}`, string(resp.Body))
}

func TestDoTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.Error(t, err)
}

func TestDoValidatesRequest(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)
	_, err = c.Do(context.Background(), nil)
	require.Error(t, err)
	_, err = c.Do(context.Background(), &Request{Path: "/"})
	require.Error(t, err)
}
