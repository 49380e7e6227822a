package kmer

import (
	"fmt"
	"strings"
)

// ValidationError reports user input rejected before any network call.
// Values lists every offending value that was found, not just the first.
type ValidationError struct {
	Field  string
	Reason string
	Values []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid %s", e.Field)
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Values) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Values, ", "))
		b.WriteString("]")
	}
	return b.String()
}

// Invalid builds a ValidationError for a non-sequence input (column, threshold, ...).
func Invalid(field, reason string, values ...string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Values: values}
}
