package odds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		wantErr  error
	}{
		{name: "decimal", input: "2.6", expected: 2.6},
		{name: "decimal with spaces", input: "  4.30 ", expected: 4.3},
		{name: "fractional", input: "5/2", expected: 3.5},
		{name: "fractional odds-on", input: "1/4", expected: 1.25},
		{name: "evens", input: "Evens", expected: 2.0},
		{name: "evs", input: "evs", expected: 2.0},
		{name: "american plus", input: "+150", expected: 2.5},
		{name: "american minus", input: "-200", expected: 1.5},
		{name: "american even", input: "+100", expected: 2.0},
		{name: "empty", input: "", wantErr: ErrEmptyPrice},
		{name: "garbage", input: "abc", wantErr: ErrMalformedPrice},
		{name: "bad fraction", input: "5/0", wantErr: ErrMalformedPrice},
		{name: "three part fraction", input: "1/2/3", wantErr: ErrMalformedPrice},
		{name: "small american", input: "+50", wantErr: ErrMalformedPrice},
		{name: "below one", input: "0.9", wantErr: ErrPriceBelowOne},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := ParsePrice(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, price.InexactFloat64(), 1e-12)
		})
	}
}

func TestParsePrices(t *testing.T) {
	prices, err := ParsePrices([]string{"2.6", "7/5", "+330"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.6, 2.4, 4.3}, prices, 1e-12)

	_, err = ParsePrices([]string{"2.6", "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedPrice)
	assert.Contains(t, err.Error(), "price 1")
}
