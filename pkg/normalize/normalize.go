// Package normalize provides name normalization for claim/order matching
package normalize

import (
	"sort"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("alphanumeric", Alphanumeric)
	Register("sortchars", SortChars)
	Register("fingerprint", Fingerprint)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := Get(normalizer)
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// SortChars sorts the characters of a string by code point
func SortChars(s string) string {
	runes := []rune(s)
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	return string(runes)
}

// Fingerprint canonicalizes a free-text name into the comparison key used
// by the matching engine: trim, uppercase, strip non-alphanumerics, then
// sort the remaining characters. The result is an anagram-equivalence key:
// two names with the same letter multiset produce the same fingerprint
// regardless of word order, case, or punctuation. Empty input yields an
// empty fingerprint. Fingerprint is idempotent.
func Fingerprint(s string) string {
	return ApplyChain(s, "trim", "uppercase", "alphanumeric", "sortchars")
}
