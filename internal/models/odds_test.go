package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(f float64) *float64 {
	return &f
}

func TestOddsSnapshotGetPrice(t *testing.T) {
	tests := []struct {
		name     string
		snapshot OddsSnapshot
		expected float64
		wantErr  bool
	}{
		{
			name:     "back price preferred",
			snapshot: OddsSnapshot{BackPrice: price(3.5), LayPrice: price(3.6), LTP: price(3.55)},
			expected: 3.5,
		},
		{
			name:     "falls back to last traded",
			snapshot: OddsSnapshot{LayPrice: price(3.6), LTP: price(3.55)},
			expected: 3.55,
		},
		{
			name:     "invalid back price skipped",
			snapshot: OddsSnapshot{BackPrice: price(0), LTP: price(4.2)},
			expected: 4.2,
		},
		{
			name:     "no prices",
			snapshot: OddsSnapshot{},
			wantErr:  true,
		},
		{
			name:     "lay only",
			snapshot: OddsSnapshot{LayPrice: price(5.0)},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.snapshot.GetPrice()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoUsablePrice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestOddsSnapshotSpreadAndMid(t *testing.T) {
	s := OddsSnapshot{BackPrice: price(2.0), LayPrice: price(2.2)}

	assert.InDelta(t, 0.2, s.GetSpread(), 1e-12)
	assert.InDelta(t, 2.1, s.GetMidPrice(), 1e-12)
	assert.InDelta(t, 1/2.1, s.GetImpliedProbability(), 1e-12)

	empty := OddsSnapshot{}
	assert.Equal(t, 0.0, empty.GetSpread())
	assert.Equal(t, 0.0, empty.GetImpliedProbability())
}

func TestImpliedProbabilityEdge(t *testing.T) {
	p := ImpliedProbability{Price: 4.0, Probability: 0.3}
	assert.InDelta(t, 0.05, p.Edge(), 1e-12)

	zero := ImpliedProbability{}
	assert.Equal(t, 0.0, zero.Edge())
}
