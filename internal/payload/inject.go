package payload

import (
	"net/url"
	"strings"

	"github.com/0x6d61/sqlif/internal/form"
)

// queryParam is one distinct query key with all of its values, in the order
// they appear in the URL.
type queryParam struct {
	key    string
	values []string
}

// parseQuery splits a raw query into distinct keys in first-appearance
// order. Blank values are kept. Pairs that fail to unescape are kept
// verbatim rather than dropped.
func parseQuery(raw string) []queryParam {
	var params []queryParam
	index := make(map[string]int)

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		value = unescape(value)

		if i, ok := index[key]; ok {
			params[i].values = append(params[i].values, value)
			continue
		}
		index[key] = len(params)
		params = append(params, queryParam{key: key, values: []string{value}})
	}
	return params
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// encodeQuery is the inverse of parseQuery, preserving key order.
func encodeQuery(params []queryParam) string {
	var b strings.Builder
	for _, p := range params {
		for _, v := range p.values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(p.key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// injectedURL is a URL with one parameter varied.
type injectedURL struct {
	url   string
	param string
}

func injectQuery(rawURL, injection string) []injectedURL {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	params := parseQuery(u.RawQuery)

	out := make([]injectedURL, 0, len(params))
	for i, p := range params {
		variant := make([]queryParam, len(params))
		copy(variant, params)

		values := make([]string, len(p.values))
		for j, v := range p.values {
			values[j] = v + injection
		}
		variant[i] = queryParam{key: p.key, values: values}

		injected := *u
		injected.RawQuery = encodeQuery(variant)
		out = append(out, injectedURL{url: injected.String(), param: p.key})
	}
	return out
}

// InjectURL returns one URL per distinct query parameter of rawURL, with
// injection appended to that parameter's value(s) and all other parameters
// left as they were. A URL without a query (or one that cannot be parsed)
// yields nothing.
func InjectURL(rawURL, injection string) []string {
	injected := injectQuery(rawURL, injection)
	urls := make([]string, len(injected))
	for i, in := range injected {
		urls[i] = in.url
	}
	return urls
}

// InjectData returns one copy of data per field, with injection appended to
// that field's value only.
func InjectData(data form.Data, injection string) []form.Data {
	out := make([]form.Data, 0, len(data))
	for i := range data {
		variant := data.Clone()
		variant[i].Value += injection
		out = append(out, variant)
	}
	return out
}

// MergeURL adds data to the query of base. Existing parameters keep their
// position; a form field with the same name replaces the URL value. Fields
// not already present are appended in form order.
func MergeURL(base string, data form.Data) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	params := parseQuery(u.RawQuery)

	index := make(map[string]int, len(params))
	for i, p := range params {
		index[p.key] = i
	}
	for _, f := range data {
		if i, ok := index[f.Name]; ok {
			params[i].values = []string{f.Value}
			continue
		}
		index[f.Name] = len(params)
		params = append(params, queryParam{key: f.Name, values: []string{f.Value}})
	}

	u.RawQuery = encodeQuery(params)
	return u.String()
}
