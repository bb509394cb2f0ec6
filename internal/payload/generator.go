package payload

import (
	"github.com/0x6d61/sqlif/internal/form"
	"github.com/0x6d61/sqlif/internal/tamper"
)

// Generator expands a target URL and its forms into payloads.
type Generator struct {
	catalog []string
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithCatalog replaces the injection catalog.
func WithCatalog(catalog []string) GeneratorOption {
	return func(g *Generator) {
		g.catalog = append([]string(nil), catalog...)
	}
}

// WithTamper applies chain to every catalog entry. It must come after
// WithCatalog when both are used.
func WithTamper(chain tamper.Chain) GeneratorOption {
	return func(g *Generator) {
		g.catalog = chain.ApplyAll(g.catalog)
	}
}

// NewGenerator creates a Generator using Catalog unless overridden.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{catalog: append([]string(nil), Catalog...)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Catalog returns the injection strings in use.
func (g *Generator) Catalog() []string {
	return append([]string(nil), g.catalog...)
}

// Generate returns the payload set for a target in a fixed order:
//  1. the target URL's own query parameters, catalog-major;
//  2. then each form in discovery order, catalog-major.
//
// GET forms are submitted as the resolved action URL with the form data
// merged into its query. POST forms vary one field of the body at a time.
func (g *Generator) Generate(targetURL string, forms []form.Form) []Payload {
	var payloads []Payload

	for _, inj := range g.catalog {
		payloads = appendURLPayloads(payloads, targetURL, inj)
	}

	for _, f := range forms {
		action := f.ResolveAction(targetURL)
		data := f.Data()

		switch f.Method {
		case form.MethodPost:
			for _, inj := range g.catalog {
				for i, d := range InjectData(data, inj) {
					payloads = append(payloads, Payload{
						URL:       action,
						Data:      d,
						Method:    form.MethodPost,
						Parameter: data[i].Name,
						Injection: inj,
					})
				}
			}
		default:
			full := MergeURL(action, data)
			for _, inj := range g.catalog {
				payloads = appendURLPayloads(payloads, full, inj)
			}
		}
	}

	return payloads
}

func appendURLPayloads(payloads []Payload, rawURL, injection string) []Payload {
	for _, in := range injectQuery(rawURL, injection) {
		payloads = append(payloads, Payload{
			URL:       in.url,
			Method:    form.MethodGet,
			Parameter: in.param,
			Injection: injection,
		})
	}
	return payloads
}
