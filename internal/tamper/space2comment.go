package tamper

import "strings"

// space2commentTamper replaces each space character with a SQL inline comment
// /**/ to bypass filters that block whitespace.
//
// Example:
//
//	" ORDER BY 10000-- -" → "/**/ORDER/**/BY/**/10000--/**/-"
type space2commentTamper struct{}

func (t *space2commentTamper) Name() string { return "space2comment" }

func (t *space2commentTamper) Apply(s string) string {
	return strings.ReplaceAll(s, " ", "/**/")
}
