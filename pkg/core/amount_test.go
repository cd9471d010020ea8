package core

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "1000", "1000"},
		{"surrounding space", " 2500 ", "2500"},
		{"trailing zero fraction", "1000.00", "1000"},
		{"longest accepted", strings.Repeat("9", MaxAmountDigits), strings.Repeat("9", MaxAmountDigits)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmountRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"words", "lots"},
		{"negative", "-1000"},
		{"fraction", "10.5"},
		{"huge exponent", "1e999999999"},
		{"small exponent", "1e3"},
		{"upper case exponent", "1E3"},
		{"negative exponent", "1000e-1"},
		{"too many digits", strings.Repeat("9", MaxAmountDigits+1)},
		{"long fraction", "1." + strings.Repeat("0", 1<<20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAmount(tt.input)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestInAmountRange(t *testing.T) {
	assert.True(t, InAmountRange(decimal.NewFromInt(1000)))
	assert.True(t, InAmountRange(decimal.Zero))
	assert.True(t, InAmountRange(decimal.New(1, MaxAmountDigits-1)))
	assert.False(t, InAmountRange(decimal.New(1, MaxAmountDigits)))
	assert.False(t, InAmountRange(decimal.New(1, 999999999)))
	assert.False(t, InAmountRange(decimal.New(1, -999999999)))
}
