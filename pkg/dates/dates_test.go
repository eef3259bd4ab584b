package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "iso format", input: "2024-01-10", expected: "2024-01-10", ok: true},
		{name: "us slash format", input: "01/10/2024", expected: "2024-01-10", ok: true},
		{name: "compact format", input: "20240110", expected: "2024-01-10", ok: true},
		{name: "us dash format", input: "01-10-2024", expected: "2024-01-10", ok: true},
		{name: "surrounding whitespace", input: " 2024-01-10 ", expected: "2024-01-10", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "whitespace only", input: "   ", ok: false},
		{name: "garbage", input: "not a date", ok: false},
		{name: "partial date", input: "2024-01", ok: false},
		{name: "month out of range", input: "2024-13-01", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, parsed.Format("2006-01-02"))
			}
		})
	}
}

func TestParseFormatOrder(t *testing.T) {
	// 01-02-2006 is month-day-year, not day-month-year
	parsed, ok := Parse("03-04-2024")
	require.True(t, ok)
	assert.Equal(t, time.March, parsed.Month())
	assert.Equal(t, 4, parsed.Day())
}

func TestParseAll(t *testing.T) {
	raw := []string{"2024-01-10", "bogus", "", "01/15/2024"}
	parsed := ParseAll(raw)

	require.Len(t, parsed, 2)
	assert.Equal(t, "2024-01-10", parsed[0].Format("2006-01-02"))
	assert.Equal(t, "2024-01-15", parsed[1].Format("2006-01-02"))
}

func TestDaysApart(t *testing.T) {
	a, _ := Parse("2024-01-10")
	b, _ := Parse("2024-01-15")

	assert.Equal(t, 5, DaysApart(a, b))
	assert.Equal(t, 5, DaysApart(b, a))
	assert.Equal(t, 0, DaysApart(a, a))
}

func TestWithinWindow(t *testing.T) {
	a, _ := Parse("2024-01-10")

	exactly14, _ := Parse("2024-01-24")
	assert.True(t, WithinWindow(a, exactly14, 14))

	fifteen, _ := Parse("2024-01-25")
	assert.False(t, WithinWindow(a, fifteen, 14))

	same, _ := Parse("2024-01-10")
	assert.True(t, WithinWindow(a, same, 14))
}
