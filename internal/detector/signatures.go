// Package detector recognises database error messages in response bodies.
package detector

import "regexp"

// Signature is the set of error patterns belonging to one DBMS.
type Signature struct {
	DBMS     string
	Patterns []*regexp.Regexp
}

// NewSignature compiles patterns into a Signature. It panics on an invalid
// pattern, like regexp.MustCompile, so it is meant for package-level tables.
func NewSignature(dbms string, patterns ...string) Signature {
	sig := Signature{DBMS: dbms, Patterns: make([]*regexp.Regexp, len(patterns))}
	for i, p := range patterns {
		sig.Patterns[i] = regexp.MustCompile(p)
	}
	return sig
}

// defaultSignatures is the built-in table. Patterns are case-sensitive;
// entries are checked in order.
var defaultSignatures = []Signature{
	NewSignature("MySQL",
		`SQL syntax.*MySQL`,
		`Warning.*mysql_.*`,
		`MySQL Query fail.*`,
		`SQL syntax.*MariaDB server`,
	),
	NewSignature("PostgreSQL",
		`PostgreSQL.*ERROR`,
		`Warning.*\Wpg_.*`,
		`Warning.*PostgreSQL`,
	),
	NewSignature("SQLite",
		`SQLite/JDBCDriver`,
		`System\.Data\.SQLite\.SQLiteException`,
	),
}

// extraSignatures are off by default. Several patterns are broad
// (`.*Syntax error.*query expression`, `Warning.*odbc_.*`) and match pages
// that merely discuss database errors.
var extraSignatures = []Signature{
	NewSignature("Microsoft SQL Server",
		`OLE DB.* SQL Server`,
		`(\W|\A)SQL Server.*Driver`,
		`Warning.*odbc_.*`,
		`Warning.*mssql_`,
		`Msg \d+, Level \d+, State \d+`,
		`Unclosed quotation mark after the character string`,
		`Microsoft OLE DB Provider for ODBC Drivers`,
	),
	NewSignature("Microsoft Access",
		`Microsoft Access Driver`,
		`Access Database Engine`,
		`Microsoft JET Database Engine`,
		`.*Syntax error.*query expression`,
	),
	NewSignature("Oracle",
		`\bORA-[0-9][0-9][0-9][0-9]`,
		`Oracle error`,
		`Warning.*oci_.*`,
		`Microsoft OLE DB Provider for Oracle`,
	),
	NewSignature("IBM DB2",
		`CLI Driver.*DB2`,
		`DB2 SQL error`,
	),
	NewSignature("Informix",
		`Warning.*ibase_.*`,
		`com\.informix\.jdbc`,
	),
	NewSignature("Sybase",
		`Warning.*sybase.*`,
		`Sybase message`,
	),
}

// DefaultSignatures returns a copy of the built-in signature table.
func DefaultSignatures() []Signature {
	return append([]Signature(nil), defaultSignatures...)
}

// AllSignatures returns the default table followed by the signatures that
// are off by default: Microsoft SQL Server, Microsoft Access, Oracle,
// IBM DB2, Informix and Sybase.
func AllSignatures() []Signature {
	all := make([]Signature, 0, len(defaultSignatures)+len(extraSignatures))
	all = append(all, defaultSignatures...)
	return append(all, extraSignatures...)
}
