package optimizer

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevenbergMarquardtFitsExponentialDecay(t *testing.T) {
	// value_i = p0 exp(-p1 x_i), targets generated from {2.0, 0.5}
	abscissas := []float64{0.0, 0.5, 1.0, 1.5, 2.0, 3.0}
	targets := make([]float64, len(abscissas))
	for i, x := range abscissas {
		targets[i] = 2.0 * math.Exp(-0.5*x)
	}

	values := func(parameter, values []float64) error {
		for i, x := range abscissas {
			values[i] = parameter[0] * math.Exp(-parameter[1]*x)
		}
		return nil
	}

	lm := NewLevenbergMarquardt(values, []float64{1.0, 1.0}, targets)
	lm.MaxIterations = 200
	lm.ErrorTolerance = 1e-14

	require.NoError(t, lm.Run())
	require.True(t, lm.Converged())
	require.Greater(t, lm.Iterations(), 0)

	best := lm.BestFitParameters()
	require.InDelta(t, 2.0, best[0], 1e-5)
	require.InDelta(t, 0.5, best[1], 1e-5)
	require.LessOrEqual(t, lm.MeanSquaredError(), 1e-14)
}

func TestLevenbergMarquardtWeightsSelectTargets(t *testing.T) {
	values := func(parameter, values []float64) error {
		values[0] = parameter[0]
		values[1] = parameter[0]
		return nil
	}

	lm := NewLevenbergMarquardt(values, []float64{0.0}, []float64{1.0, 3.0})
	lm.Weights = []float64{1.0, 0.0}
	lm.ErrorTolerance = 1e-18

	require.NoError(t, lm.Run())
	require.True(t, lm.Converged())
	require.InDelta(t, 1.0, lm.BestFitParameters()[0], 1e-6)
}

func TestLevenbergMarquardtIterationBoundIsNotAnError(t *testing.T) {
	values := func(parameter, values []float64) error {
		values[0] = math.Exp(parameter[0])
		return nil
	}

	lm := NewLevenbergMarquardt(values, []float64{5.0}, []float64{0.5})
	lm.MaxIterations = 2

	require.NoError(t, lm.Run())
	require.False(t, lm.Converged())
	require.Equal(t, 2, lm.Iterations())
	require.Len(t, lm.BestFitParameters(), 1)
}

func TestLevenbergMarquardtDegenerateObjective(t *testing.T) {
	values := func(parameter, values []float64) error {
		values[0] = 1.0
		values[1] = 2.0
		return nil
	}

	lm := NewLevenbergMarquardt(values, []float64{1.0, 1.0}, []float64{0.0, 0.0})

	err := lm.Run()
	require.ErrorIs(t, err, ErrDegenerate)
}

func TestLevenbergMarquardtEvaluationFailureAborts(t *testing.T) {
	calls := 0
	values := func(parameter, values []float64) error {
		calls++
		if calls > 3 {
			return fmt.Errorf("simulation blew up")
		}
		values[0] = parameter[0] * parameter[0]
		return nil
	}

	lm := NewLevenbergMarquardt(values, []float64{2.0}, []float64{1.0})

	err := lm.Run()
	require.Error(t, err)
	require.ErrorContains(t, err, "simulation blew up")
}

func TestLevenbergMarquardtValidation(t *testing.T) {
	ok := func(parameter, values []float64) error {
		values[0] = parameter[0]
		return nil
	}

	tests := []struct {
		name string
		lm   *LevenbergMarquardt
	}{
		{"no objective", NewLevenbergMarquardt(nil, []float64{1}, []float64{1})},
		{"no parameters", NewLevenbergMarquardt(ok, nil, []float64{1})},
		{"no targets", NewLevenbergMarquardt(ok, []float64{1}, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.lm.Run())
		})
	}

	t.Run("weight length", func(t *testing.T) {
		lm := NewLevenbergMarquardt(ok, []float64{1}, []float64{1})
		lm.Weights = []float64{1, 1}
		require.Error(t, lm.Run())
	})
}
