package transport

import (
	"net/http"
	"time"
)

// Response represents an HTTP response received from the transport client.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Headers contains the response headers.
	Headers http.Header

	// Body is the raw response body.
	Body []byte

	// ContentLength is the content length from the response header.
	ContentLength int64

	// Duration is the precise round-trip time for the request.
	Duration time.Duration

	// URL is the final URL after any redirects.
	URL string

	// Protocol is the protocol version (e.g., "HTTP/1.1", "HTTP/2.0").
	Protocol string
}

// BodyString returns the response body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// Result is the outcome of a Get or Post call: either a body or the reason
// there is none. The zero Result is an absent response with no reason.
type Result struct {
	Body       string
	StatusCode int
	Err        error
}

// OK reports whether the request produced a response body.
func (r Result) OK() bool {
	return r.Err == nil && r.StatusCode != 0
}

// Failed returns a Result carrying err.
func Failed(err error) Result {
	return Result{Err: err}
}
