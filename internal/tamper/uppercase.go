package tamper

import (
	"regexp"
	"strings"
)

// sqlKeywords is the set of SQL keywords that will be uppercased.
var sqlKeywords = []string{
	"SELECT",
	"UNION",
	"WHERE",
	"ORDER",
	"GROUP",
	"LIMIT",
	"NULL",
	"AND",
	"OR",
	"BY",
}

var sqlKeywordPattern = buildKeywordPattern(sqlKeywords)

// buildKeywordPattern builds a single alternation regex:
// (?i)\b(KEYWORD1|KEYWORD2|...)\b
func buildKeywordPattern(keywords []string) *regexp.Regexp {
	parts := make([]string, len(keywords))
	for i, kw := range keywords {
		parts[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(parts, "|") + `)\b`)
}

// uppercaseTamper converts SQL keywords to UPPER CASE.
//
// Example:
//
//	" order by 10000" → " ORDER BY 10000"
type uppercaseTamper struct{}

func (t *uppercaseTamper) Name() string { return "uppercase" }

func (t *uppercaseTamper) Apply(s string) string {
	return sqlKeywordPattern.ReplaceAllStringFunc(s, strings.ToUpper)
}
