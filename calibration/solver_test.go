package calibration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banachtech/tenor/curve"
)

func TestSolverFitsDiscountFactors(t *testing.T) {
	discount := curve.NewDiscountCurve("ois")
	require.NoError(t, discount.AddPoint(1.0, 0.5))
	require.NoError(t, discount.AddPoint(2.0, 0.5))
	model := NewAnalyticModel(discount)

	products := []Product{
		ZeroCouponBond{Maturity: 1.0, DiscountCurveName: "ois"},
		ZeroCouponBond{Maturity: 2.0, DiscountCurveName: "ois"},
	}
	solver, err := NewSolver(model, products, []float64{0.97, 0.94})
	require.NoError(t, err)

	calibrated, err := solver.Calibrate([]curve.Interface{discount})
	require.NoError(t, err)
	require.True(t, solver.Converged())
	require.Greater(t, solver.Iterations(), 0)

	fitted, err := calibrated.DiscountCurve("ois")
	require.NoError(t, err)
	for maturity, target := range map[float64]float64{1.0: 0.97, 2.0: 0.94} {
		df, err := fitted.DiscountFactor(calibrated, maturity)
		require.NoError(t, err)
		require.InDelta(t, target, df, 1e-8)
	}

	// trials run on copies, the registered curve keeps its seed values
	require.InDeltaSlice(t, []float64{0.5, 0.5}, discount.Parameter(), 1e-15)
}

func TestSolverValidation(t *testing.T) {
	discount := curve.NewDiscountCurve("ois")
	require.NoError(t, discount.AddPoint(1.0, 0.5))
	model := NewAnalyticModel(discount)
	bond := ZeroCouponBond{Maturity: 1.0, DiscountCurveName: "ois"}

	t.Run("no products", func(t *testing.T) {
		_, err := NewSolver(model, nil, nil)
		require.ErrorContains(t, err, "no products")
	})

	t.Run("target length mismatch", func(t *testing.T) {
		_, err := NewSolver(model, []Product{bond}, []float64{0.97, 0.94})
		require.ErrorContains(t, err, "1 products but 2 target values")
	})

	t.Run("no curves", func(t *testing.T) {
		solver, err := NewSolver(model, []Product{bond}, []float64{0.97})
		require.NoError(t, err)
		_, err = solver.Calibrate(nil)
		require.ErrorContains(t, err, "no curves")
	})

	t.Run("curves without parameters", func(t *testing.T) {
		solver, err := NewSolver(model, []Product{bond}, []float64{0.97})
		require.NoError(t, err)
		_, err = solver.Calibrate([]curve.Interface{curve.NewDiscountCurve("empty")})
		require.ErrorContains(t, err, "carry no parameters")
	})
}
