package covariance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banachtech/tenor/timegrid"
)

func testGrids() (*timegrid.TimeDiscretization, *timegrid.TimeDiscretization) {
	grid := timegrid.NewEquidistant(0.0, 4, 0.5)
	tenor := timegrid.New(0.5, 1.0, 1.5, 2.0)
	return grid, tenor
}

// flatRealization stands in for a model realization where only the path
// count matters.
func flatRealization(components, paths int) [][]float64 {
	realization := make([][]float64, components)
	for c := range realization {
		realization[c] = make([]float64, paths)
		for p := range realization[c] {
			realization[c][p] = 0.05
		}
	}
	return realization
}

func TestFourParameterExponentialVolatility(t *testing.T) {
	grid, tenor := testGrids()
	v := NewFourParameterExponential(grid, tenor, 0.3, 0.2, 0.25, 0.1, false)

	tests := []struct {
		name      string
		timeIndex int
		component int
		want      float64
	}{
		{"one period to maturity", 0, 0, (0.3+0.2*0.5)*math.Exp(-0.25*0.5) + 0.1},
		{"two periods to maturity", 0, 1, (0.3+0.2*1.0)*math.Exp(-0.25*1.0) + 0.1},
		{"fixing at grid time", 1, 0, 0.0},
		{"already fixed", 2, 0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, v.Volatility(tt.timeIndex, tt.component), 1e-15)
		})
	}

	t.Run("negative volatility floored", func(t *testing.T) {
		floored := NewFourParameterExponential(grid, tenor, -1.0, 0.0, 0.0, 0.0, false)
		require.Equal(t, 0.0, floored.Volatility(0, 2))
	})
}

func TestFourParameterExponentialParameter(t *testing.T) {
	grid, tenor := testGrids()

	t.Run("fixed model has no parameter", func(t *testing.T) {
		v := NewFourParameterExponential(grid, tenor, 0.3, 0.2, 0.25, 0.1, false)
		require.Nil(t, v.Parameter())
		require.NoError(t, v.SetParameter([]float64{1, 2, 3, 4}))
		require.InDelta(t, (0.3+0.2*0.5)*math.Exp(-0.25*0.5)+0.1, v.Volatility(0, 0), 1e-15)
	})

	t.Run("calibrateable round trip", func(t *testing.T) {
		v := NewFourParameterExponential(grid, tenor, 0.3, 0.2, 0.25, 0.1, true)
		require.Equal(t, []float64{0.3, 0.2, 0.25, 0.1}, v.Parameter())
		require.NoError(t, v.SetParameter([]float64{0.1, 0.0, 0.5, 0.2}))
		require.Equal(t, []float64{0.1, 0.0, 0.5, 0.2}, v.Parameter())
	})

	t.Run("wrong length", func(t *testing.T) {
		v := NewFourParameterExponential(grid, tenor, 0.3, 0.2, 0.25, 0.1, true)
		require.Error(t, v.SetParameter([]float64{0.1}))
	})
}

func TestExponentialDecayCorrelation(t *testing.T) {
	_, tenor := testGrids()
	components := tenor.NumberOfTimeSteps()

	t.Run("full rank reproduces the correlation", func(t *testing.T) {
		decay := 0.3
		m, err := NewExponentialDecay(tenor, components, decay, false)
		require.NoError(t, err)
		for i := 0; i < components; i++ {
			for j := 0; j < components; j++ {
				want := math.Exp(-decay * math.Abs(tenor.Time(i)-tenor.Time(j)))
				require.InDelta(t, want, m.Correlation(0, i, j), 1e-12, "correlation (%d,%d)", i, j)
			}
		}
	})

	t.Run("reduced rank keeps unit variance", func(t *testing.T) {
		m, err := NewExponentialDecay(tenor, 2, 0.3, false)
		require.NoError(t, err)
		for i := 0; i < components; i++ {
			norm := 0.0
			for f := 0; f < 2; f++ {
				norm += m.FactorLoading(0, f, i) * m.FactorLoading(0, f, i)
			}
			require.InDelta(t, 1.0, norm, 1e-12)
			require.InDelta(t, 1.0, m.Correlation(0, i, i), 1e-12)
		}
	})

	t.Run("negative decay clamped to perfect correlation", func(t *testing.T) {
		m, err := NewExponentialDecay(tenor, 1, -0.5, false)
		require.NoError(t, err)
		require.InDelta(t, 1.0, m.Correlation(0, 0, components-1), 1e-12)
	})

	t.Run("factor count out of range", func(t *testing.T) {
		_, err := NewExponentialDecay(tenor, 0, 0.3, false)
		require.Error(t, err)
		_, err = NewExponentialDecay(tenor, components+1, 0.3, false)
		require.Error(t, err)
	})

	t.Run("parameter round trip", func(t *testing.T) {
		m, err := NewExponentialDecay(tenor, 2, 0.3, true)
		require.NoError(t, err)
		require.Equal(t, []float64{0.3}, m.Parameter())
		require.NoError(t, m.SetParameter([]float64{0.8}))
		require.Equal(t, []float64{0.8}, m.Parameter())
		require.Error(t, m.SetParameter([]float64{0.8, 0.1}))

		fixed, err := NewExponentialDecay(tenor, 2, 0.3, false)
		require.NoError(t, err)
		require.Nil(t, fixed.Parameter())
	})
}

func TestFromVolatilityAndCorrelation(t *testing.T) {
	grid, tenor := testGrids()
	components := tenor.NumberOfTimeSteps()
	paths := 4
	realization := flatRealization(components, paths)

	volatility := NewFourParameterExponential(grid, tenor, 0.3, 0.2, 0.25, 0.1, true)
	correlation, err := NewExponentialDecay(tenor, 2, 0.3, true)
	require.NoError(t, err)
	model := NewFromVolatilityAndCorrelation(tenor, volatility, correlation)

	t.Run("loading is volatility times correlation loading", func(t *testing.T) {
		require.Equal(t, 2, model.NumberOfFactors())
		loadings, err := model.FactorLoading(0, 1, realization)
		require.NoError(t, err)
		require.Len(t, loadings, 2)
		for f, loading := range loadings {
			require.Len(t, loading, paths)
			want := volatility.Volatility(0, 1) * correlation.FactorLoading(0, f, 1)
			for _, got := range loading {
				require.Equal(t, want, got)
			}
		}
	})

	t.Run("parameter is volatility then correlation", func(t *testing.T) {
		require.Equal(t, []float64{0.3, 0.2, 0.25, 0.1, 0.3}, model.Parameter())
		require.NoError(t, model.SetParameter([]float64{0.25, 0.1, 0.3, 0.05, 0.6}))
		require.Equal(t, []float64{0.25, 0.1, 0.3, 0.05, 0.6}, model.Parameter())
		require.Error(t, model.SetParameter([]float64{0.25, 0.1}))
	})

	t.Run("clone is independent", func(t *testing.T) {
		clone, err := WithParameter(model, []float64{0.3, 0.2, 0.25, 0.1, 0.3})
		require.NoError(t, err)
		require.Equal(t, []float64{0.3, 0.2, 0.25, 0.1, 0.3}, clone.Parameter())
		require.Equal(t, []float64{0.25, 0.1, 0.3, 0.05, 0.6}, model.Parameter())
	})

	t.Run("empty realization", func(t *testing.T) {
		_, err := model.FactorLoading(0, 0, nil)
		require.Error(t, err)
	})
}

func TestFromVolatilityAndCorrelationPseudoInverse(t *testing.T) {
	grid, tenor := testGrids()
	components := tenor.NumberOfTimeSteps()
	realization := flatRealization(components, 3)

	volatility := NewFourParameterExponential(grid, tenor, 0.3, 0.0, 0.0, 0.0, false)
	correlation, err := NewExponentialDecay(tenor, 1, 0.0, false)
	require.NoError(t, err)
	model := NewFromVolatilityAndCorrelation(tenor, volatility, correlation)

	t.Run("single factor closed form", func(t *testing.T) {
		// with decay zero the factor weight is the component count; the
		// product with the loading is sign independent
		for c := 0; c < components; c++ {
			inverse, err := model.FactorLoadingPseudoInverse(0, c, 0, realization)
			require.NoError(t, err)
			loadings, err := model.FactorLoading(0, c, realization)
			require.NoError(t, err)
			require.InDelta(t, 1.0/float64(components), loadings[0][0]*inverse[0], 1e-12)
			require.InDelta(t, 1.0/(0.3*float64(components)), math.Abs(inverse[0]), 1e-12)
		}
	})

	t.Run("zero volatility not invertible", func(t *testing.T) {
		_, err := model.FactorLoadingPseudoInverse(1, 0, 0, realization)
		require.Error(t, err)
	})
}

func TestExponentialForm5Param(t *testing.T) {
	grid, tenor := testGrids()
	components := tenor.NumberOfTimeSteps()
	paths := 3
	realization := flatRealization(components, paths)

	t.Run("defaults", func(t *testing.T) {
		m, err := NewExponentialForm5Param(grid, tenor, 2, nil)
		require.NoError(t, err)
		require.Equal(t, []float64{0.20, 0.05, 0.10, 0.20, 0.10}, m.Parameter())
		require.Equal(t, 2, m.NumberOfFactors())
	})

	t.Run("loading matches explicit sub-models", func(t *testing.T) {
		m, err := NewExponentialForm5Param(grid, tenor, 2, []float64{0.3, 0.2, 0.25, 0.1, 0.3})
		require.NoError(t, err)

		volatility := NewFourParameterExponential(grid, tenor, 0.3, 0.2, 0.25, 0.1, false)
		correlation, err := NewExponentialDecay(tenor, 2, 0.3, false)
		require.NoError(t, err)
		want := NewFromVolatilityAndCorrelation(tenor, volatility, correlation)

		for c := 0; c < components; c++ {
			got, err := m.FactorLoading(0, c, realization)
			require.NoError(t, err)
			expected, err := want.FactorLoading(0, c, realization)
			require.NoError(t, err)
			require.Equal(t, expected, got)
		}
	})

	t.Run("set parameter rebuilds", func(t *testing.T) {
		m, err := NewExponentialForm5Param(grid, tenor, 2, nil)
		require.NoError(t, err)
		before, err := m.FactorLoading(0, 1, realization)
		require.NoError(t, err)
		require.NoError(t, m.SetParameter([]float64{0.4, 0.05, 0.10, 0.20, 0.10}))
		after, err := m.FactorLoading(0, 1, realization)
		require.NoError(t, err)
		require.NotEqual(t, before, after)
	})

	t.Run("negative decay clamped", func(t *testing.T) {
		m, err := NewExponentialForm5Param(grid, tenor, 2, nil)
		require.NoError(t, err)
		require.NoError(t, m.SetParameter([]float64{0.20, 0.05, 0.10, 0.20, -0.4}))
		require.Equal(t, 0.0, m.Parameter()[4])
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := NewExponentialForm5Param(grid, tenor, 2, []float64{0.2})
		require.Error(t, err)
		m, err := NewExponentialForm5Param(grid, tenor, 2, nil)
		require.NoError(t, err)
		require.Error(t, m.SetParameter([]float64{0.2, 0.05}))
	})

	t.Run("no pseudo inverse", func(t *testing.T) {
		m, err := NewExponentialForm5Param(grid, tenor, 2, nil)
		require.NoError(t, err)
		_, err = m.FactorLoadingPseudoInverse(0, 0, 0, realization)
		require.ErrorIs(t, err, ErrNoPseudoInverse)
	})

	t.Run("clone is independent", func(t *testing.T) {
		m, err := NewExponentialForm5Param(grid, tenor, 2, nil)
		require.NoError(t, err)
		original, err := m.FactorLoading(0, 1, realization)
		require.NoError(t, err)

		clone := m.Clone()
		require.NoError(t, clone.SetParameter([]float64{0.4, 0.05, 0.10, 0.20, 0.10}))

		require.Equal(t, []float64{0.20, 0.05, 0.10, 0.20, 0.10}, m.Parameter())
		unchanged, err := m.FactorLoading(0, 1, realization)
		require.NoError(t, err)
		require.Equal(t, original, unchanged)
	})
}
