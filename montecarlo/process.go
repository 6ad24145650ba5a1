package montecarlo

import (
	"fmt"
	"sync"

	"github.com/banachtech/tenor/timegrid"
)

// ProcessModel describes the stochastic differential equation evolved by an
// EulerScheme. Drift and factor loadings are functions of the transformed
// realization at a time index; the state space transform maps the internal
// state to the model's natural domain.
type ProcessModel interface {
	NumberOfComponents() int
	NumberOfFactors() int
	// InitialState returns the untransformed initial state per component,
	// identical across paths.
	InitialState() []float64
	// Drift returns the per-component, per-path drift. A nil component
	// slice means zero drift for that component.
	Drift(timeIndex int, realization [][]float64) ([][]float64, error)
	// FactorLoading returns the loadings of the given component on each
	// factor, per path.
	FactorLoading(timeIndex, component int, realization [][]float64) ([][]float64, error)
	// ApplyStateSpaceTransform maps the untransformed state of a component
	// to the model's natural domain. It may modify state in place and
	// return it.
	ApplyStateSpaceTransform(component int, state []float64) []float64
}

// EulerScheme evolves a ProcessModel along a Brownian motion with the Euler
// discretization
//
//	X_{t+1} = X_t + drift(t, X_t) dt + sum_f loading_f(t, X_t) dW_f.
//
// Realizations are computed forward in time once per time index and
// memoized. The step loop is guarded so that concurrent readers share one
// computation and never observe a partially evolved step.
type EulerScheme struct {
	model    ProcessModel
	brownian BrownianMotion

	mu           sync.Mutex
	state        [][]float64   // untransformed, component -> path
	realizations [][][]float64 // timeIndex -> component -> path, transformed
}

// NewEulerScheme constructs a scheme evolving the model along the given
// Brownian motion. The model's factor count must match the noise source.
func NewEulerScheme(model ProcessModel, brownian BrownianMotion) (*EulerScheme, error) {
	if model.NumberOfFactors() != brownian.NumberOfFactors() {
		return nil, fmt.Errorf("montecarlo: model has %d factors, noise source %d", model.NumberOfFactors(), brownian.NumberOfFactors())
	}
	if brownian.TimeDiscretization().NumberOfTimes() == 0 {
		return nil, fmt.Errorf("montecarlo: empty time discretization")
	}
	return &EulerScheme{model: model, brownian: brownian}, nil
}

func (e *EulerScheme) TimeDiscretization() *timegrid.TimeDiscretization {
	return e.brownian.TimeDiscretization()
}

func (e *EulerScheme) NumberOfPaths() int { return e.brownian.NumberOfPaths() }

// MonteCarloWeights returns the uniform path weights 1/numberOfPaths.
func (e *EulerScheme) MonteCarloWeights() []float64 {
	weights := make([]float64, e.brownian.NumberOfPaths())
	for i := range weights {
		weights[i] = 1.0 / float64(len(weights))
	}
	return weights
}

// Realization returns the transformed state at the given time index,
// evolving forward from the last cached step if needed. The returned slices
// must not be modified.
func (e *EulerScheme) Realization(timeIndex int) ([][]float64, error) {
	if timeIndex < 0 || timeIndex >= e.TimeDiscretization().NumberOfTimes() {
		return nil, fmt.Errorf("montecarlo: time index %d out of range [0,%d)", timeIndex, e.TimeDiscretization().NumberOfTimes())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.realizations) <= timeIndex {
		if err := e.step(); err != nil {
			return nil, err
		}
	}
	return e.realizations[timeIndex], nil
}

// RealizationComponent returns one component of the transformed state at
// the given time index.
func (e *EulerScheme) RealizationComponent(timeIndex, component int) ([]float64, error) {
	realization, err := e.Realization(timeIndex)
	if err != nil {
		return nil, err
	}
	if component < 0 || component >= len(realization) {
		return nil, fmt.Errorf("montecarlo: component %d out of range [0,%d)", component, len(realization))
	}
	return realization[component], nil
}

// step appends the next time index to the realization cache. Must be called
// with the lock held.
func (e *EulerScheme) step() error {
	components := e.model.NumberOfComponents()
	paths := e.brownian.NumberOfPaths()

	if len(e.realizations) == 0 {
		initial := e.model.InitialState()
		if len(initial) != components {
			return fmt.Errorf("montecarlo: initial state has %d components, model %d", len(initial), components)
		}
		e.state = make([][]float64, components)
		transformed := make([][]float64, components)
		for c := 0; c < components; c++ {
			e.state[c] = make([]float64, paths)
			for p := range e.state[c] {
				e.state[c][p] = initial[c]
			}
			transformed[c] = e.model.ApplyStateSpaceTransform(c, append([]float64(nil), e.state[c]...))
		}
		e.realizations = append(e.realizations, transformed)
		return nil
	}

	timeIndex := len(e.realizations) - 1
	deltaT := e.TimeDiscretization().TimeStep(timeIndex)
	current := e.realizations[timeIndex]

	drift, err := e.model.Drift(timeIndex, current)
	if err != nil {
		return fmt.Errorf("montecarlo: drift at time index %d: %w", timeIndex, err)
	}
	if len(drift) != components {
		return fmt.Errorf("montecarlo: drift has %d components, model %d", len(drift), components)
	}

	factors := e.model.NumberOfFactors()
	transformed := make([][]float64, components)
	for c := 0; c < components; c++ {
		loadings, err := e.model.FactorLoading(timeIndex, c, current)
		if err != nil {
			return fmt.Errorf("montecarlo: factor loading at time index %d, component %d: %w", timeIndex, c, err)
		}
		if len(loadings) != factors {
			return fmt.Errorf("montecarlo: component %d has %d factor loadings, model %d", c, len(loadings), factors)
		}
		next := e.state[c]
		if drift[c] != nil {
			for p := 0; p < paths; p++ {
				next[p] += drift[c][p] * deltaT
			}
		}
		for f := 0; f < factors; f++ {
			increment := e.brownian.Increment(timeIndex, f)
			loading := loadings[f]
			for p := 0; p < paths; p++ {
				next[p] += loading[p] * increment[p]
			}
		}
		transformed[c] = e.model.ApplyStateSpaceTransform(c, append([]float64(nil), next...))
	}
	e.realizations = append(e.realizations, transformed)
	return nil
}
