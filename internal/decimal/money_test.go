package decimal_test

import (
	"strings"
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-renderer/internal/decimal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"123456.78", "123456.78", true},
		{"  42 ", "42", true},
		{"-10.5", "-10.5", true},
		{".5", "0.5", true},
		{"1e3", "1000", true},
		{"12.5abc", "12.5", true},
		{"1,50", "1", true},
		{"", "0", false},
		{"abc", "0", false},
		{"-", "0", false},
		{".", "0", false},
		{"1e", "1", true},
		{"007.50", "7.5", true},
		{"1e30", "1000000000000000000000000000000", true},
		{"1e31", "0", false},
		{"1e10000000", "0", false},
		{"1e-10000000", "0", false},
		{strings.Repeat("9", 31), "0", false},
		{"1.5" + strings.Repeat("0", 40) + "9", "1.5", true},
	}

	for _, tt := range tests {
		name := tt.in
		if len(name) > 20 {
			name = name[:20]
		}
		t.Run(name, func(t *testing.T) {
			d, ok := decimal.Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, d.Equal(dec.RequireFromString(tt.want)), "got %s", d.String())
		})
	}
}

func TestFormatBR(t *testing.T) {
	tests := []struct {
		in     string
		places int32
		want   string
	}{
		{"0", 2, "0,00"},
		{"1", 2, "1,00"},
		{"999.99", 2, "999,99"},
		{"1000", 2, "1.000,00"},
		{"1234567.891", 2, "1.234.567,89"},
		{"2.005", 2, "2,01"},
		{"-1500.5", 2, "-1.500,50"},
		{"1234.5", 0, "1.235"},
		{"100000", 2, "100.000,00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := dec.NewFromString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decimal.FormatBR(d, tt.places))
		})
	}
}
