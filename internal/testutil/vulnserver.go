// Package testutil provides test utilities including a mock vulnerable web
// server for integration testing of the sqlif scanner.
//
// SECURITY NOTE: This package is for testing only. The mock server
// intentionally leaks database errors for crafted input. All user-derived
// values embedded in responses are HTML-escaped via html/template.
package testutil

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"
)

// SlowDelay is how long /vuln/slow stalls before answering.
const SlowDelay = 2 * time.Second

// Response templates using html/template for safe HTML rendering.
var tmplMap = template.Must(template.New("").Parse(`
{{define "mysql-syntax-error"}}<html><body><h1>Error</h1><p>You have an error in your SQL syntax; check the manual that corresponds to your MySQL server version for the right syntax to use near '{{.}}' at line 1</p></body></html>{{end}}
{{define "pg-warning"}}<html><body><h1>Error</h1><p>Warning: pg_query(): Query failed: ERROR:  syntax error at or near "{{.}}"</p></body></html>{{end}}
{{define "mssql-error"}}<html><body><h1>Server Error</h1><p>Unclosed quotation mark after the character string '{{.}}'.</p></body></html>{{end}}
{{define "product"}}<html><body><h1>Products</h1><p>Product: Widget (ID: 1)</p></body></html>{{end}}
{{define "user"}}<html><body><h1>Users</h1><p>User: admin (ID: 1)</p></body></html>{{end}}
{{define "safe"}}<html><body><h1>Product</h1><p>Product details for item 42</p></body></html>{{end}}
{{define "search-results"}}<html><body><h1>Search</h1><p>No results for {{.}}</p></body></html>{{end}}
{{define "login-failed"}}<html><body><h1>Login</h1><p>Login failed. Invalid credentials.</p></body></html>{{end}}
{{define "forms"}}<html><head><title>Shop</title></head><body>
<form action="/search" method="get">
  <input type="text" name="q" value="">
  <input type="submit" value="Search">
</form>
<form action="/login" method="POST">
  <input type="text" name="username">
  <input type="password" name="password">
  <input type="hidden" name="token" value="abc123">
  <input type="submit" name="go" value="Sign in">
</form>
</body></html>{{end}}
`))

// NewVulnServer creates a mock HTTP server simulating a vulnerable web
// application. The returned *httptest.Server should be closed after use.
//
// Endpoints:
//
//	/                     page with a GET search form and a POST login form
//	/search?q=X           MySQL error when X contains a single quote
//	/login (POST)         MySQL error when username contains a single quote;
//	                      the form is only processed when the go button is sent
//	/vuln/error-mysql?id  MySQL error when id contains a single quote
//	/vuln/error-postgres  PostgreSQL warning when id contains a double quote
//	/vuln/error-mssql?id  SQL Server error when id contains a single quote
//	/vuln/multi?id&name   only id is injectable
//	/vuln/safe            never leaks an error
//	/vuln/slow            answers after SlowDelay
//	/vuln/forbidden       always 403
func NewVulnServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/", handleIndex)
	mux.HandleFunc("/search", handleSearch)
	mux.HandleFunc("/login", handleLogin)
	mux.HandleFunc("/vuln/error-mysql", handleErrorMySQL)
	mux.HandleFunc("/vuln/error-postgres", handleErrorPostgres)
	mux.HandleFunc("/vuln/error-mssql", handleErrorMSSQL)
	mux.HandleFunc("/vuln/multi", handleMulti)
	mux.HandleFunc("/vuln/safe", handleSafe)
	mux.HandleFunc("/vuln/slow", handleSlow)
	mux.HandleFunc("/vuln/forbidden", handleForbidden)

	return httptest.NewServer(mux)
}

// execTemplate renders a named template with optional data to the ResponseWriter.
func execTemplate(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	tmplMap.ExecuteTemplate(w, name, data) //nolint:errcheck
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	execTemplate(w, "forms", nil)
}

// handleSearch is the target of the index page's GET form.
func handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.Contains(q, "'") {
		execTemplate(w, "mysql-syntax-error", q)
		return
	}
	execTemplate(w, "search-results", q)
}

// handleLogin is the target of the index page's POST form. GET requests
// get the form page back.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		execTemplate(w, "forms", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if _, ok := r.PostForm["go"]; !ok {
		execTemplate(w, "forms", nil)
		return
	}
	username := r.PostForm.Get("username")
	if strings.Contains(username, "'") {
		execTemplate(w, "mysql-syntax-error", username)
		return
	}
	execTemplate(w, "login-failed", nil)
}

// handleErrorMySQL simulates a MySQL error-based injectable endpoint.
//
// GET /vuln/error-mysql?id=X
//   - Normal: returns HTML with "Product: Widget (ID: 1)"
//   - If X contains "'": returns MySQL syntax error
func handleErrorMySQL(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if strings.Contains(id, "'") {
		execTemplate(w, "mysql-syntax-error", id)
		return
	}
	execTemplate(w, "product", nil)
}

// handleErrorPostgres simulates a PostgreSQL endpoint that breaks on
// double quotes (identifier quoting).
//
// GET /vuln/error-postgres?id=X
func handleErrorPostgres(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if strings.Contains(id, `"`) {
		execTemplate(w, "pg-warning", id)
		return
	}
	execTemplate(w, "user", nil)
}

// handleErrorMSSQL leaks a SQL Server error, which only the extended
// signature table recognises.
//
// GET /vuln/error-mssql?id=X
func handleErrorMSSQL(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if strings.Contains(id, "'") {
		execTemplate(w, "mssql-error", id)
		return
	}
	execTemplate(w, "product", nil)
}

// handleMulti simulates an endpoint with multiple parameters where only
// "id" reaches the SQL query.
//
// GET /vuln/multi?id=X&name=Y
func handleMulti(w http.ResponseWriter, r *http.Request) {
	handleErrorMySQL(w, r)
}

// handleSafe simulates a non-injectable endpoint. It always returns the
// same page regardless of input.
func handleSafe(w http.ResponseWriter, _ *http.Request) {
	execTemplate(w, "safe", nil)
}

// handleSlow stalls for SlowDelay or until the client gives up.
func handleSlow(w http.ResponseWriter, r *http.Request) {
	select {
	case <-time.After(SlowDelay):
		execTemplate(w, "safe", nil)
	case <-r.Context().Done():
	}
}

func handleForbidden(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "forbidden", http.StatusForbidden)
}
