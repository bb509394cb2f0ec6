package tamper

// appendNullByteTamper appends a NUL byte, which some filters treat as the
// end of the input while the database still sees the preceding characters.
type appendNullByteTamper struct{}

func (t *appendNullByteTamper) Name() string { return "appendnullbyte" }

func (t *appendNullByteTamper) Apply(s string) string {
	return s + "\x00"
}
