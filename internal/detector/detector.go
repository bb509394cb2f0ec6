package detector

// Detector matches response bodies against an ordered signature table.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	signatures []Signature
}

// New returns a Detector over sigs, or over the built-in table when sigs is
// empty.
func New(sigs ...Signature) *Detector {
	if len(sigs) == 0 {
		sigs = defaultSignatures
	}
	return &Detector{signatures: sigs}
}

// Match reports whether body contains any known DBMS error. An empty body
// never matches.
func (d *Detector) Match(body string) bool {
	_, ok := d.Identify(body)
	return ok
}

// Identify returns the DBMS whose signature matched first.
func (d *Detector) Identify(body string) (string, bool) {
	if body == "" {
		return "", false
	}
	for _, sig := range d.signatures {
		for _, re := range sig.Patterns {
			if re.MatchString(body) {
				return sig.DBMS, true
			}
		}
	}
	return "", false
}

// DBMSNames returns the DBMS names covered, in table order.
func (d *Detector) DBMSNames() []string {
	names := make([]string, len(d.signatures))
	for i, s := range d.signatures {
		names[i] = s.DBMS
	}
	return names
}
