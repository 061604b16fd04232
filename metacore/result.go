package metacore

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"metadisk.org/metatool/internal/httpx"
)

// Response is a node's HTTP reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

func fromHTTPX(r *httpx.Response) *Response {
	return &Response{StatusCode: r.StatusCode, Header: r.Header, Body: r.Body, URL: r.URL}
}

// Result is what an operation produced: either a textual value (a download
// link, a saved file path) or an HTTP response.
type Result struct {
	Text     string
	Response *Response
}

// TextResult wraps a textual value.
func TextResult(s string) Result { return Result{Text: s} }

// IsText reports whether the result is a textual value.
func (r Result) IsText() bool { return r.Response == nil }

// StatusCode returns the HTTP status, or 0 for textual results.
func (r Result) StatusCode() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// String renders the result the way Show prints it.
func (r Result) String() string {
	if r.Response == nil {
		return r.Text
	}
	return strconv.Itoa(r.Response.StatusCode) + "\n" + string(r.Response.Body)
}

// Show prints a result: the status code and body for HTTP responses,
// the literal value otherwise.
func Show(w io.Writer, r Result) error {
	s := r.String()
	if len(s) == 0 || s[len(s)-1] != '\n' {
		s += "\n"
	}
	_, err := fmt.Fprint(w, s)
	return err
}
