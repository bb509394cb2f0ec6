// Package transport provides the shared HTTP client a scan run uses for
// page fetches, payload dispatch and search queries.
package transport

import "time"

// Request is a low-level request for Do. Get and Post build one internally;
// the search layer builds its own to send engine-specific headers.
type Request struct {
	// Method defaults to GET when empty.
	Method string
	URL    string

	// Headers are set on the request after Content-Type and before the
	// User-Agent default is applied.
	Headers map[string]string

	Body        string
	ContentType string

	// Timeout overrides the client timeout for this request when positive.
	Timeout time.Duration
}
