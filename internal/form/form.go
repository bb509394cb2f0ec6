// Package form extracts HTML forms from fetched pages and computes the
// values a browser would submit for them.
package form

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Method is a form submission method.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// ParseMethod maps a method attribute to a Method. Anything other than
// "post" (case-insensitive) is GET, matching how browsers treat missing or
// unknown values.
func ParseMethod(s string) Method {
	if strings.EqualFold(strings.TrimSpace(s), "post") {
		return MethodPost
	}
	return MethodGet
}

// Input is a single <input> element. Missing attributes are empty strings.
type Input struct {
	Type  string
	Name  string
	Value string
}

// Form is a parsed <form> element.
type Form struct {
	// Action is the raw action attribute. It is left unresolved;
	// see ResolveAction.
	Action string
	// HasAction is false when the element has no action attribute.
	HasAction bool
	Method    Method
	Inputs    []Input
}

// Extract parses html and returns one Form per <form> element in document
// order. Malformed markup never fails: whatever the parser recovers is used,
// and an unreadable document yields no forms.
func Extract(html string) []Form {
	if strings.TrimSpace(html) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var forms []Form
	doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		action, hasAction := sel.Attr("action")
		method, _ := sel.Attr("method")

		f := Form{
			Action:    action,
			HasAction: hasAction,
			Method:    ParseMethod(method),
		}

		sel.Find("input").Each(func(_ int, in *goquery.Selection) {
			f.Inputs = append(f.Inputs, Input{
				Type:  in.AttrOr("type", ""),
				Name:  in.AttrOr("name", ""),
				Value: in.AttrOr("value", ""),
			})
		})

		forms = append(forms, f)
	})

	return forms
}

// Data returns the name/value mapping submitted for the form:
//   - hidden inputs and inputs with a value keep that value, submit
//     buttons included
//   - other non-submit inputs submit an empty string
//   - valueless submit inputs and nameless inputs are left out
func (f Form) Data() Data {
	var d Data
	for _, in := range f.Inputs {
		if in.Name == "" {
			continue
		}
		typ := strings.ToLower(in.Type)
		switch {
		case typ == "hidden" || in.Value != "":
			d.Set(in.Name, in.Value)
		case typ != "submit":
			d.Set(in.Name, "")
		}
	}
	return d
}

// ResolveAction returns the absolute URL the form submits to, resolved
// against the page URL base. A missing or empty action submits to base
// itself. If either URL cannot be parsed, base is returned unchanged.
func (f Form) ResolveAction(base string) string {
	action := strings.TrimSpace(f.Action)
	if action == "" {
		return base
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return base
	}
	ref, err := url.Parse(action)
	if err != nil {
		return base
	}
	return baseURL.ResolveReference(ref).String()
}
