package covariance

import (
	"fmt"
	"math"
	"sync"

	"github.com/banachtech/tenor/montecarlo"
)

// StochasticVolatility decorates a parametric covariance model, scaling all
// of its factor loadings by the log-normal process
//
//	dS = S nu (rho dW_1 + sqrt(1-rho^2) dW_2),  S(0) = 1,
//
// simulated over the first two factors of the supplied Brownian motion. Use
// a BrownianView to correlate the scaling with other consumers of the same
// noise source.
//
// If the decorator is calibrateable its parameter vector is the wrapped
// model's followed by {nu, rho}; otherwise the wrapped model's parameters
// pass through untouched.
type StochasticVolatility struct {
	base     ParametricModel
	brownian montecarlo.BrownianMotion
	nu, rho  float64

	calibrateable bool

	mu       sync.Mutex
	scalings *montecarlo.EulerScheme
}

func NewStochasticVolatility(base ParametricModel, brownian montecarlo.BrownianMotion, nu, rho float64, calibrateable bool) (*StochasticVolatility, error) {
	if brownian.NumberOfFactors() < 2 {
		return nil, fmt.Errorf("covariance: stochastic volatility needs 2 Brownian factors, got %d", brownian.NumberOfFactors())
	}
	return &StochasticVolatility{base: base, brownian: brownian, nu: nu, rho: rho, calibrateable: calibrateable}, nil
}

func (m *StochasticVolatility) NumberOfFactors() int { return m.base.NumberOfFactors() }

func (m *StochasticVolatility) FactorLoading(timeIndex, component int, realization [][]float64) ([][]float64, error) {
	paths, err := realizationPaths(realization)
	if err != nil {
		return nil, err
	}
	scaling, err := m.scaling(timeIndex)
	if err != nil {
		return nil, fmt.Errorf("covariance: stochastic volatility scaling: %w", err)
	}
	if len(scaling) != paths {
		return nil, fmt.Errorf("covariance: scaling has %d paths, realization %d", len(scaling), paths)
	}
	loadings, err := m.base.FactorLoading(timeIndex, component, realization)
	if err != nil {
		return nil, err
	}
	for _, loading := range loadings {
		for p := range loading {
			loading[p] *= scaling[p]
		}
	}
	return loadings, nil
}

func (m *StochasticVolatility) FactorLoadingPseudoInverse(int, int, int, [][]float64) ([]float64, error) {
	return nil, ErrNoPseudoInverse
}

func (m *StochasticVolatility) Parameter() []float64 {
	if !m.calibrateable {
		return m.base.Parameter()
	}
	return concatParameters(m.base.Parameter(), []float64{m.nu, m.rho})
}

func (m *StochasticVolatility) SetParameter(parameter []float64) error {
	if len(parameter) == 0 {
		return nil
	}
	if !m.calibrateable {
		return m.base.SetParameter(parameter)
	}
	if len(parameter) < 2 {
		return fmt.Errorf("covariance: parameter length %d, want at least 2", len(parameter))
	}
	split := len(parameter) - 2
	if err := m.base.SetParameter(parameter[:split]); err != nil {
		return err
	}
	nu, rho := parameter[split], parameter[split+1]
	if nu != m.nu || rho != m.rho {
		m.mu.Lock()
		m.nu, m.rho = nu, rho
		m.scalings = nil
		m.mu.Unlock()
	}
	return nil
}

// Clone clones the wrapped model and shares the Brownian motion, so clones
// see identical noise.
func (m *StochasticVolatility) Clone() ParametricModel {
	return &StochasticVolatility{
		base:          m.base.Clone(),
		brownian:      m.brownian,
		nu:            m.nu,
		rho:           m.rho,
		calibrateable: m.calibrateable,
	}
}

// scaling returns the per-path scaling at the time index, building the
// scaling process on first use. The scheme is rebuilt after nu or rho
// change.
func (m *StochasticVolatility) scaling(timeIndex int) ([]float64, error) {
	m.mu.Lock()
	if m.scalings == nil {
		view, err := montecarlo.NewBrownianView(m.brownian, []int{0, 1})
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		scheme, err := montecarlo.NewEulerScheme(volDiffusion{nu: m.nu, rho: m.rho}, view)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		m.scalings = scheme
	}
	scalings := m.scalings
	m.mu.Unlock()
	return scalings.RealizationComponent(timeIndex, 0)
}

// volDiffusion is the one-component log-Euler diffusion of the scaling
// process. It captures nu and rho by value, a rebuilt scheme carries the
// current parameters.
type volDiffusion struct {
	nu, rho float64
}

func (d volDiffusion) NumberOfComponents() int { return 1 }

func (d volDiffusion) NumberOfFactors() int { return 2 }

func (d volDiffusion) InitialState() []float64 { return []float64{0.0} }

func (d volDiffusion) Drift(_ int, realization [][]float64) ([][]float64, error) {
	return [][]float64{broadcast(-0.5*d.nu*d.nu, len(realization[0]))}, nil
}

func (d volDiffusion) FactorLoading(_, _ int, realization [][]float64) ([][]float64, error) {
	paths := len(realization[0])
	return [][]float64{
		broadcast(d.rho*d.nu, paths),
		broadcast(math.Sqrt(1.0-d.rho*d.rho)*d.nu, paths),
	}, nil
}

func (d volDiffusion) ApplyStateSpaceTransform(_ int, state []float64) []float64 {
	for p := range state {
		state[p] = math.Exp(state[p])
	}
	return state
}
