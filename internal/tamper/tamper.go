// Package tamper provides transformations applied to the injection catalog
// before payloads are built, to get past naive input filters.
//
// Built-in tampers:
//   - space2comment:  Replaces spaces with /**/ comments
//   - uppercase:      Converts SQL keywords to UPPER CASE
//   - appendnullbyte: Appends a NUL byte to terminate the injected string early
//
// Usage:
//
//	chain, err := tamper.Parse([]string{"space2comment"})
//	catalog := chain.ApplyAll(payload.Catalog)
package tamper

import (
	"fmt"
	"sort"
	"strings"
)

// Tamper transforms a raw injection string.
type Tamper interface {
	// Name returns the tamper's short identifier (e.g. "space2comment").
	Name() string
	// Apply transforms the injection string and returns the modified version.
	Apply(s string) string
}

// Chain applies multiple tampers sequentially.
type Chain []Tamper

// Apply runs each tamper in order and returns the fully-transformed string.
func (c Chain) Apply(s string) string {
	for _, t := range c {
		s = t.Apply(s)
	}
	return s
}

// ApplyAll returns a new slice with the chain applied to every entry.
// Entries that collapse to the same string are kept so catalog positions
// stay stable.
func (c Chain) ApplyAll(catalog []string) []string {
	out := make([]string, len(catalog))
	for i, s := range catalog {
		out[i] = c.Apply(s)
	}
	return out
}

// Names returns the names of the tampers in the chain.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name()
	}
	return names
}

// registry maps tamper names to their constructors.
var registry = map[string]func() Tamper{
	"space2comment":  func() Tamper { return &space2commentTamper{} },
	"uppercase":      func() Tamper { return &uppercaseTamper{} },
	"appendnullbyte": func() Tamper { return &appendNullByteTamper{} },
}

// Lookup returns the Tamper for the given name, or nil if not found.
func Lookup(name string) Tamper {
	fn, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	return fn()
}

// Available returns all registered tamper names in alphabetical order.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildChain constructs a Chain from the given tamper names.
// Names that are not registered are silently ignored.
func BuildChain(names ...string) Chain {
	var chain Chain
	for _, name := range names {
		if t := Lookup(name); t != nil {
			chain = append(chain, t)
		}
	}
	return chain
}

// Parse is like BuildChain but rejects unknown names. Empty names are
// skipped so a trailing comma on the command line is harmless.
func Parse(names []string) (Chain, error) {
	var chain Chain
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		t := Lookup(name)
		if t == nil {
			return nil, fmt.Errorf("tamper: unknown tamper %q (available: %s)",
				name, strings.Join(Available(), ", "))
		}
		chain = append(chain, t)
	}
	return chain, nil
}
