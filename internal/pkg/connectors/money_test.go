package connectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalToCents(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{150.00, 15000},
		{14.90, 1490},
		{0.01, 1},
		{0, 0},
		{-12.34, -1234},
		// Round-half-to-even on exact .5 cent values.
		{0.125, 12},
		{0.375, 38},
		{0.625, 62},
		{0.875, 88},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecimalToCents(tt.amount), "amount %v", tt.amount)
	}
}

func TestParseDecimalAmount(t *testing.T) {
	got, err := ParseDecimalAmount("150.00")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), got)

	got, err = ParseDecimalAmount(float64(99.9))
	require.NoError(t, err)
	assert.Equal(t, int64(9990), got)

	got, err = ParseDecimalAmount(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	got, err = ParseDecimalAmount("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	_, err = ParseDecimalAmount("not-a-number")
	assert.Error(t, err)

	_, err = ParseDecimalAmount([]string{"150"})
	assert.Error(t, err)
}
