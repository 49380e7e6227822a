// internal/kmer/alphabet.go
package kmer

import (
	"strings"
	"unicode"
)

// Alphabets accepted by the oracle.
const (
	// QueryAlphabet is accepted for batch count queries ('$' marks read ends).
	QueryAlphabet = "$ACGNT"
	// SeedAlphabet is accepted for exploration seeds.
	SeedAlphabet = "ACGT"
)

// Symbols is the fixed extension order used by followPath results.
var Symbols = [4]byte{'A', 'C', 'G', 'T'}

// Normalize removes spaces/quotes and uppercases symbols.
func Normalize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '\'' || r == '"' {
			continue
		}
		out = append(out, unicode.ToUpper(r))
	}
	return string(out)
}

// Valid reports whether every symbol of s belongs to alphabet.
// The empty string is valid; callers decide whether empties are allowed.
func Valid(s, alphabet string) bool {
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

// ValidateAll checks every k-mer against alphabet and returns a
// *ValidationError listing all offenders (in input order), or nil.
func ValidateAll(kmers []string, alphabet string) error {
	var bad []string
	for _, k := range kmers {
		if !Valid(k, alphabet) {
			bad = append(bad, k)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &ValidationError{
		Field:  "k-mer",
		Reason: "symbols outside " + quoteAlphabet(alphabet),
		Values: bad,
	}
}

// ValidateSeed normalizes and validates an exploration seed.
func ValidateSeed(raw string) (string, error) {
	s := Normalize(raw)
	if s == "" {
		return "", &ValidationError{Field: "seed", Reason: "empty k-mer"}
	}
	if !Valid(s, SeedAlphabet) {
		return "", &ValidationError{
			Field:  "seed",
			Reason: "symbols outside " + quoteAlphabet(SeedAlphabet),
			Values: []string{s},
		}
	}
	return s, nil
}

func quoteAlphabet(a string) string { return `"` + a + `"` }
