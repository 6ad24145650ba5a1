package formulas

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlackOptionValue(t *testing.T) {
	tests := []struct {
		name                                            string
		forward, strike, volatility, maturity, discount float64
		want                                            float64
		delta                                           float64
	}{
		{"at the money", 0.05, 0.05, 0.20, 1.0, 1.0, 0.0039827837, 1e-9},
		{"discounted", 0.05, 0.05, 0.20, 1.0, 0.9, 0.9 * 0.0039827837, 1e-9},
		{"zero volatility is intrinsic", 0.06, 0.05, 0.0, 1.0, 1.0, 0.01, 1e-15},
		{"zero maturity is intrinsic", 0.04, 0.05, 0.20, 0.0, 1.0, 0.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BlackOptionValue(tt.forward, tt.strike, tt.volatility, tt.maturity, tt.discount)
			require.InDelta(t, tt.want, got, tt.delta)
		})
	}

	t.Run("monotone in volatility", func(t *testing.T) {
		low := BlackOptionValue(0.05, 0.06, 0.10, 2.0, 1.0)
		high := BlackOptionValue(0.05, 0.06, 0.30, 2.0, 1.0)
		require.Less(t, low, high)
	})
}

func TestBlackCapletValue(t *testing.T) {
	caplet := BlackCapletValue(0.05, 0.04, 0.25, 2.0, 0.5, 0.92)
	option := BlackOptionValue(0.05, 0.04, 0.25, 2.0, 0.92)
	require.InDelta(t, 0.5*option, caplet, 1e-15)
}

func TestBlackImpliedVolatility(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for _, sigma := range []float64{0.05, 0.20, 0.60} {
			price := BlackOptionValue(0.05, 0.055, sigma, 1.5, 0.95)
			implied, err := BlackImpliedVolatility(price, 0.05, 0.055, 1.5, 0.95)
			require.NoError(t, err)
			require.InDelta(t, sigma, implied, 1e-5)
		}
	})

	t.Run("arbitrage bounds", func(t *testing.T) {
		_, err := BlackImpliedVolatility(0.06, 0.05, 0.055, 1.5, 1.0)
		require.Error(t, err)
		_, err = BlackImpliedVolatility(-0.01, 0.05, 0.055, 1.5, 1.0)
		require.Error(t, err)
	})

	t.Run("zero maturity", func(t *testing.T) {
		_, err := BlackImpliedVolatility(0.001, 0.05, 0.055, 0.0, 1.0)
		require.Error(t, err)
	})
}
