package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple name",
			input:    "JOHN SMITH",
			expected: "HHIJMNOST",
		},
		{
			name:     "lowercase input",
			input:    "john smith",
			expected: "HHIJMNOST",
		},
		{
			name:     "reversed word order",
			input:    "SMITH JOHN",
			expected: "HHIJMNOST",
		},
		{
			name:     "punctuation stripped",
			input:    "Smith, John",
			expected: "HHIJMNOST",
		},
		{
			name:     "surrounding whitespace",
			input:    "  John Smith  ",
			expected: "HHIJMNOST",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: "",
		},
		{
			name:     "punctuation only",
			input:    "-.,'",
			expected: "",
		},
		{
			name:     "digits kept",
			input:    "John Smith 2nd",
			expected: "2DHHIJMNNOST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fingerprint(tt.input))
		})
	}
}

func TestFingerprintIdempotent(t *testing.T) {
	inputs := []string{
		"Jane Doe",
		"DOE, jane",
		"  mixed  Case   Name ",
		"O'Brien-Smith Jr.",
		"",
		"12345",
	}

	for _, input := range inputs {
		once := Fingerprint(input)
		assert.Equal(t, once, Fingerprint(once), "input %q", input)
	}
}

func TestFingerprintAnagramEquivalence(t *testing.T) {
	assert.Equal(t, Fingerprint("Jane Doe"), Fingerprint("DOE, jane"))
	assert.Equal(t, Fingerprint("JOHN SMITH"), Fingerprint("smith, JOHN"))
	assert.NotEqual(t, Fingerprint("John Smith"), Fingerprint("John Smyth"))
}

func TestRegistry(t *testing.T) {
	fn, ok := Get("fingerprint")
	assert.True(t, ok)
	assert.Equal(t, Fingerprint("Doe Jane"), fn("Doe Jane"))

	_, ok = Get("unknown")
	assert.False(t, ok)

	// Unknown normalizers pass the value through unchanged
	assert.Equal(t, "AbC", Apply("AbC", "unknown"))

	chained := ApplyChain("  Doe, Jane ", "trim", "uppercase", "alphanumeric", "sortchars")
	assert.Equal(t, Fingerprint("Doe, Jane"), chained)
}
