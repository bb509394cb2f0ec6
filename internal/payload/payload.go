// Package payload builds the injected request variants sent to a target:
// one request per injection point and catalog entry.
package payload

import "github.com/0x6d61/sqlif/internal/form"

// Catalog is the default list of injection strings, in emission order.
// Each is appended to exactly one parameter value per payload.
var Catalog = []string{
	"'",
	`"`,
	" ORDER BY 10000",
	" ORDER BY 10000--",
	" ORDER BY 10000#",
	"#",
	"--",
	"-- -",
	"/*",
	"`",
}

// Payload is one concrete injection attempt.
type Payload struct {
	// URL is the request URL. For GET payloads it already carries the
	// injected value.
	URL string
	// Data is the POST body mapping; nil for GET.
	Data form.Data
	// Method is GET or POST.
	Method form.Method
	// Parameter is the name of the query parameter or field that was varied.
	Parameter string
	// Injection is the catalog entry appended to Parameter.
	Injection string
	// Detected is set once the response matched a DBMS error signature.
	Detected bool
	// DBMS names the database whose error signature matched.
	DBMS string
}

// IsPost reports whether the payload is sent as a form POST.
func (p *Payload) IsPost() bool {
	return p.Method == form.MethodPost
}
