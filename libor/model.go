// Package libor implements a parametric forward rate market model under
// the spot measure, its Monte Carlo simulation, and the calibration of its
// covariance model to market target values.
package libor

import (
	"fmt"
	"math"

	"github.com/banachtech/tenor/covariance"
	"github.com/banachtech/tenor/curve"
	"github.com/banachtech/tenor/timegrid"
)

// MarketModel evolves the forward rates of a tenor structure in log
// coordinates under the spot measure. It satisfies montecarlo.ProcessModel;
// the factor structure is delegated to a parametric covariance model.
type MarketModel struct {
	grid  *timegrid.TimeDiscretization
	tenor *timegrid.TimeDiscretization

	initialForwards []float64
	covariance      covariance.ParametricModel
}

// NewMarketModel constructs a market model on the given simulation grid and
// tenor structure. Initial forwards are read off the forward curve at the
// period starts; the curve model resolves referenced curves and may be nil
// for self-contained forward curves. Every tenor time must lie on the
// simulation grid, and initial forwards must be positive in log
// coordinates.
func NewMarketModel(grid, tenor *timegrid.TimeDiscretization, forwardCurve *curve.ForwardCurve, model curve.Model, cov covariance.ParametricModel) (*MarketModel, error) {
	components := tenor.NumberOfTimeSteps()
	if components < 1 {
		return nil, fmt.Errorf("libor: tenor structure has no periods")
	}
	initialForwards := make([]float64, components)
	for c := 0; c < components; c++ {
		if _, ok := grid.TimeIndex(tenor.Time(c)); !ok {
			return nil, fmt.Errorf("libor: tenor time %g not on the simulation grid", tenor.Time(c))
		}
		forward, err := forwardCurve.Forward(model, tenor.Time(c))
		if err != nil {
			return nil, fmt.Errorf("libor: initial forward for period %d: %w", c, err)
		}
		if forward <= 0 {
			return nil, fmt.Errorf("libor: initial forward %g for period %d not representable in log coordinates", forward, c)
		}
		initialForwards[c] = forward
	}
	if _, ok := grid.TimeIndex(tenor.Time(components)); !ok {
		return nil, fmt.Errorf("libor: tenor time %g not on the simulation grid", tenor.Time(components))
	}
	return &MarketModel{grid: grid, tenor: tenor, initialForwards: initialForwards, covariance: cov}, nil
}

func (m *MarketModel) TimeDiscretization() *timegrid.TimeDiscretization  { return m.grid }
func (m *MarketModel) TenorDiscretization() *timegrid.TimeDiscretization { return m.tenor }

// Covariance returns the covariance model driving the factor structure.
func (m *MarketModel) Covariance() covariance.ParametricModel { return m.covariance }

// WithCovarianceModel returns a model sharing the grids and initial
// forwards but driven by the given covariance model.
func (m *MarketModel) WithCovarianceModel(cov covariance.ParametricModel) *MarketModel {
	clone := *m
	clone.covariance = cov
	return &clone
}

func (m *MarketModel) NumberOfComponents() int { return len(m.initialForwards) }

func (m *MarketModel) NumberOfFactors() int { return m.covariance.NumberOfFactors() }

func (m *MarketModel) InitialState() []float64 {
	state := make([]float64, len(m.initialForwards))
	for c, forward := range m.initialForwards {
		state[c] = math.Log(forward)
	}
	return state
}

// Drift returns the spot measure drift in log coordinates,
//
//	mu_m = sum_f lambda_mf (sum_{j=first..m} (delta_j L_j)/(1+delta_j L_j) lambda_jf) - 1/2 sum_f lambda_mf^2,
//
// accumulated over factor sums so the cost stays linear in the number of
// components. Periods already fixed at the given time carry a nil drift.
func (m *MarketModel) Drift(timeIndex int, realization [][]float64) ([][]float64, error) {
	components := m.NumberOfComponents()
	factors := m.NumberOfFactors()
	time := m.grid.Time(timeIndex)
	first := m.firstForwardIndex(time)

	drift := make([][]float64, components)
	if first >= components {
		return drift, nil
	}
	paths := len(realization[0])

	factorSums := make([][]float64, factors)
	for f := range factorSums {
		factorSums[f] = make([]float64, paths)
	}
	transform := make([]float64, paths)

	for c := first; c < components; c++ {
		loadings, err := m.covariance.FactorLoading(timeIndex, c, realization)
		if err != nil {
			return nil, err
		}
		deltaT := m.tenor.TimeStep(c)
		forward := realization[c]
		for p := 0; p < paths; p++ {
			accrual := deltaT * forward[p]
			transform[p] = accrual / (1.0 + accrual)
		}

		drift[c] = make([]float64, paths)
		for f := 0; f < factors; f++ {
			sum := factorSums[f]
			loading := loadings[f]
			for p := 0; p < paths; p++ {
				sum[p] += transform[p] * loading[p]
				drift[c][p] += loading[p] * (sum[p] - 0.5*loading[p])
			}
		}
	}
	return drift, nil
}

func (m *MarketModel) FactorLoading(timeIndex, component int, realization [][]float64) ([][]float64, error) {
	return m.covariance.FactorLoading(timeIndex, component, realization)
}

func (m *MarketModel) ApplyStateSpaceTransform(_ int, state []float64) []float64 {
	for p := range state {
		state[p] = math.Exp(state[p])
	}
	return state
}

// firstForwardIndex returns the first period whose start lies strictly
// after the given time. Periods before it are fixed and excluded from the
// measure transform.
func (m *MarketModel) firstForwardIndex(time float64) int {
	if time < m.tenor.Time(0) {
		return 0
	}
	return m.tenor.TimeIndexNearestLessOrEqual(time) + 1
}
