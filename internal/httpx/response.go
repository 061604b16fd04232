package httpx

import "net/http"

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the request URL that produced the response.
	URL string
}
