package search

import (
	"net/url"
	"strconv"
	"strings"
)

// engine describes how to query one search engine and read its results.
type engine struct {
	name    string
	baseURL string
	// pageParams returns the extra query parameters for a zero-based page.
	pageParams func(page int) url.Values
	// selector matches the result anchors on a results page.
	selector string
	// unwrap turns a result href into the destination URL.
	unwrap func(href string) string
	// blockedMarkers are substrings only present on captcha or ban pages.
	blockedMarkers []string
}

// engines is the closed set of supported search engines.
var engines = map[string]func() *engine{
	"bing":       newBing,
	"duckduckgo": newDuckDuckGo,
	"mojeek":     newMojeek,
}

func newBing() *engine {
	return &engine{
		name:    "bing",
		baseURL: "https://www.bing.com/search",
		pageParams: func(page int) url.Values {
			return offsetParam("first", 1+page*10)
		},
		selector:       "li.b_algo h2 a",
		unwrap:         identity,
		blockedMarkers: []string{"b_captcha", "/challenge/verify"},
	}
}

func newDuckDuckGo() *engine {
	return &engine{
		name:    "duckduckgo",
		baseURL: "https://html.duckduckgo.com/html/",
		pageParams: func(page int) url.Values {
			if page == 0 {
				return nil
			}
			v := offsetParam("s", page*30)
			v.Set("dc", strconv.Itoa(page*30+1))
			return v
		},
		selector:       "a.result__a",
		unwrap:         unwrapDuckDuckGo,
		blockedMarkers: []string{"anomaly-modal", "challenge-form"},
	}
}

func newMojeek() *engine {
	return &engine{
		name:    "mojeek",
		baseURL: "https://www.mojeek.com/search",
		pageParams: func(page int) url.Values {
			if page == 0 {
				return nil
			}
			return offsetParam("s", 1+page*10)
		},
		selector:       "ul.results-standard li a.ob",
		unwrap:         identity,
		blockedMarkers: []string{"automated queries", "403 - Forbidden"},
	}
}

// pageURL builds the results URL for query on a zero-based page.
func (e *engine) pageURL(query string, page int) string {
	v := url.Values{}
	v.Set("q", query)
	for key, vals := range e.pageParams(page) {
		v[key] = vals
	}
	sep := "?"
	if strings.Contains(e.baseURL, "?") {
		sep = "&"
	}
	return e.baseURL + sep + v.Encode()
}

// blocked reports whether a results page is a captcha or ban page.
func (e *engine) blocked(body string) bool {
	for _, marker := range e.blockedMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func offsetParam(key string, n int) url.Values {
	return url.Values{key: {strconv.Itoa(n)}}
}

func identity(href string) string { return href }

// unwrapDuckDuckGo extracts the destination from DuckDuckGo's
// //duckduckgo.com/l/?uddg=<url> redirect links.
func unwrapDuckDuckGo(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if dest := u.Query().Get("uddg"); dest != "" && strings.HasPrefix(u.Path, "/l/") {
		return dest
	}
	return href
}
