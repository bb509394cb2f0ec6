package form

import (
	"net/url"
	"strings"
)

// Field is one name/value pair of a Data mapping.
type Field struct {
	Name  string
	Value string
}

// Data is an insertion-ordered name to value mapping. Names are unique:
// setting an existing name replaces its value in place.
type Data []Field

// Get returns the value stored for name.
func (d Data) Get(name string) (string, bool) {
	for _, f := range d {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set stores value under name, keeping the original position if name is
// already present.
func (d *Data) Set(name, value string) {
	for i := range *d {
		if (*d)[i].Name == name {
			(*d)[i].Value = value
			return
		}
	}
	*d = append(*d, Field{Name: name, Value: value})
}

// Names returns the field names in order.
func (d Data) Names() []string {
	names := make([]string, len(d))
	for i, f := range d {
		names[i] = f.Name
	}
	return names
}

// Clone returns an independent copy.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	copy(out, d)
	return out
}

// Values converts the mapping to url.Values.
func (d Data) Values() url.Values {
	v := make(url.Values, len(d))
	for _, f := range d {
		v.Set(f.Name, f.Value)
	}
	return v
}

// Encode returns the mapping as an application/x-www-form-urlencoded string,
// preserving field order.
func (d Data) Encode() string {
	var b strings.Builder
	for i, f := range d {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}

// Map returns the mapping as a plain map, for serialisation.
func (d Data) Map() map[string]string {
	if d == nil {
		return nil
	}
	m := make(map[string]string, len(d))
	for _, f := range d {
		m[f.Name] = f.Value
	}
	return m
}
