// Intentionally vulnerable web application for end-to-end testing of sqlif.
// It renders database errors the way a careless PHP application would.
// DO NOT deploy this in any production environment.
package main

import (
	"database/sql"
	"fmt"
	"html"
	"log"
	"net/http"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// backend is one database the app can query.
type backend struct {
	name string // path prefix: "mysql" or "pg"
	db   *sql.DB
	// warning renders a driver error the way PHP's extension would.
	warning func(err error) string
}

func main() {
	mysqlDB := mustOpen("mysql", os.Getenv("MYSQL_DSN"))
	pgDB := mustOpen("postgres", os.Getenv("POSTGRES_DSN"))

	backends := []*backend{
		{
			name: "mysql",
			db:   mysqlDB,
			warning: func(err error) string {
				return "Warning: mysql_fetch_array() expects parameter 1 to be resource. " + err.Error()
			},
		},
		{
			name: "pg",
			db:   pgDB,
			warning: func(err error) string {
				return "Warning: pg_query(): Query failed: ERROR: " + err.Error()
			},
		},
	}

	mux := http.NewServeMux()
	for _, b := range backends {
		if b.db == nil {
			continue
		}
		mux.HandleFunc("/"+b.name+"/product", b.productHandler)
		mux.HandleFunc("/"+b.name+"/search", b.searchHandler)
		mux.HandleFunc("/"+b.name+"/login", b.loginHandler)
		mux.HandleFunc("/safe/"+b.name+"/product", b.safeProductHandler)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	})
	mux.HandleFunc("/", indexHandler)

	log.Println("Vulnerable test server starting on :8080")
	log.Fatal(http.ListenAndServe(":8080", mux))
}

func mustOpen(driver, dsn string) *sql.DB {
	if dsn == "" {
		return nil
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		log.Fatalf("%s connection failed: %v", driver, err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("%s ping failed: %v", driver, err)
	}
	log.Printf("Connected to %s", driver)
	return db
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>Vulnerable Test App</title></head>
<body>
<h1>sqlif Test Server</h1>
<p>WARNING: This is an intentionally vulnerable application for testing only.</p>
<form action="/mysql/search" method="get">
  <input type="text" name="q" value="widget">
  <input type="submit" value="Search (MySQL)">
</form>
<form action="/mysql/login" method="post">
  <input name="username"><input name="password" type="password">
  <input type="submit" value="Login (MySQL)">
</form>
<form action="/pg/search">
  <input type="text" name="q" value="widget">
  <input type="submit" value="Search (PostgreSQL)">
</form>
<form action="/pg/login" method="post">
  <input name="username"><input name="password" type="password">
  <input type="submit" value="Login (PostgreSQL)">
</form>
<ul>
<li><a href="/mysql/product?id=1">/mysql/product?id=1</a></li>
<li><a href="/pg/product?id=1">/pg/product?id=1</a></li>
<li><a href="/safe/mysql/product?id=1">/safe/mysql/product?id=1</a></li>
<li><a href="/safe/pg/product?id=1">/safe/pg/product?id=1</a></li>
</ul>
</body></html>`)
}

// query runs a concatenated query and writes the rows' first two columns,
// or the PHP-style warning when the database rejects it.
func (b *backend) query(w http.ResponseWriter, title, query string, args ...any) {
	log.Printf("[%s] Query: %s", b.name, query)

	rows, err := b.db.Query(query, args...)
	w.Header().Set("Content-Type", "text/html")
	if err != nil {
		// VULNERABLE: Error message exposed
		fmt.Fprintf(w, "<html><body><h1>%s</h1><p>%s</p></body></html>", title, html.EscapeString(b.warning(err)))
		return
	}
	defer rows.Close()

	fmt.Fprintf(w, "<html><body><h1>%s</h1>", title)
	count := 0
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			continue
		}
		count++
		fmt.Fprintf(w, "<p>%d. %s</p>", id, html.EscapeString(name))
	}
	fmt.Fprintf(w, "<p>%d result(s).</p></body></html>", count)
}

// GET /{db}/product?id=1
func (b *backend) productHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	// VULNERABLE: Direct string concatenation
	b.query(w, "Product", fmt.Sprintf("SELECT id, name FROM products WHERE id = %s", id))
}

// GET /{db}/search?q=widget
func (b *backend) searchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	// VULNERABLE: String concatenation with quotes
	b.query(w, "Search", fmt.Sprintf("SELECT id, name FROM products WHERE name LIKE '%%%s%%'", q))
}

// POST /{db}/login
func (b *backend) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")
	// VULNERABLE: Direct string concatenation in WHERE
	b.query(w, "Login", fmt.Sprintf("SELECT id, username FROM users WHERE username = '%s' AND password = '%s'", username, password))
}

// GET /safe/{db}/product?id=1
func (b *backend) safeProductHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	placeholder := "?"
	if b.name == "pg" {
		placeholder = "$1"
	}
	// SAFE: Parameterized query; errors are not exposed.
	rows, err := b.db.Query("SELECT id, name FROM products WHERE CAST(id AS CHAR(16)) = "+placeholder, id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body><h1>Product</h1>")
	for rows.Next() {
		var pid int
		var name string
		if rows.Scan(&pid, &name) == nil {
			fmt.Fprintf(w, "<p>%d. %s</p>", pid, html.EscapeString(name))
		}
	}
	fmt.Fprint(w, "</body></html>")
}
