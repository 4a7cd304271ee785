// Package analyze enriches recovery candidates with language-aware structure.
// Everything in this package is pure: the same bytes always produce the same
// result, and nothing here touches the repository.
package analyze

// Validity is the tri-state outcome of a syntax check.
type Validity string

// Validity states.
const (
	// SyntaxValid means the content parsed cleanly under its format grammar.
	SyntaxValid Validity = "valid"
	// SyntaxInvalid means the parser rejected the content.
	SyntaxInvalid Validity = "invalid"
	// SyntaxUnknown means no grammar is available for the format; only byte
	// and line metrics were computed.
	SyntaxUnknown Validity = "unknown"
)

// Result is the analysis attached to a candidate. Owned by this package;
// read-only everywhere else.
type Result struct {
	// Language is the detected language or format name, empty when unknown.
	Language string `json:"language,omitempty"`
	// SyntaxValid reports the parse outcome.
	SyntaxValid Validity `json:"syntax_valid"`
	// Signature is the ordered structural signature: declared symbols for
	// code, dotted key paths for structured configuration.
	Signature []string `json:"signature,omitempty"`
	// Lines is the number of lines in the content.
	Lines int `json:"lines"`
	// Bytes is the content length.
	Bytes int `json:"bytes"`
}

// HasSignature reports whether structural extraction produced anything.
func (r Result) HasSignature() bool {
	return len(r.Signature) > 0
}
