package libor

import (
	"fmt"
	"sync"

	"github.com/banachtech/tenor/montecarlo"
	"github.com/banachtech/tenor/timegrid"
)

// Simulation is a market model evolved along a noise source. Forward rates
// come from the Euler scheme; the numeraire is the discretely rolled bank
// account of the spot measure, memoized per tenor time.
type Simulation struct {
	model  *MarketModel
	scheme *montecarlo.EulerScheme

	mu         sync.Mutex
	numeraires [][]float64 // tenor index -> path
}

// NewSimulation builds the Euler scheme for the model over the given noise
// source.
func NewSimulation(model *MarketModel, brownian montecarlo.BrownianMotion) (*Simulation, error) {
	scheme, err := montecarlo.NewEulerScheme(model, brownian)
	if err != nil {
		return nil, fmt.Errorf("libor: %w", err)
	}
	return &Simulation{model: model, scheme: scheme}, nil
}

func (s *Simulation) Model() *MarketModel { return s.model }

func (s *Simulation) TimeDiscretization() *timegrid.TimeDiscretization { return s.model.grid }

func (s *Simulation) TenorDiscretization() *timegrid.TimeDiscretization { return s.model.tenor }

func (s *Simulation) NumberOfPaths() int { return s.scheme.NumberOfPaths() }

// MonteCarloWeights returns the uniform path weights.
func (s *Simulation) MonteCarloWeights() []float64 { return s.scheme.MonteCarloWeights() }

// ForwardRate returns the per-path forward rate of the tenor period at the
// given simulation time. The returned slice must not be modified.
func (s *Simulation) ForwardRate(time float64, component int) ([]float64, error) {
	timeIndex, ok := s.model.grid.TimeIndex(time)
	if !ok {
		return nil, fmt.Errorf("libor: time %g not on the simulation grid", time)
	}
	if component < 0 || component >= s.model.NumberOfComponents() {
		return nil, fmt.Errorf("libor: component %d out of range [0,%d)", component, s.model.NumberOfComponents())
	}
	return s.scheme.RealizationComponent(timeIndex, component)
}

// Numeraire returns the per-path numeraire at the given time,
//
//	N(T_k) = prod_{j<k} (1 + delta_j L_j(T_j)),
//
// defined on the tenor times. Times before the first tenor time map to one.
// The returned slice must not be modified.
func (s *Simulation) Numeraire(time float64) ([]float64, error) {
	tenor := s.model.tenor
	index, ok := tenor.TimeIndex(time)
	if !ok {
		if time < tenor.Time(0) {
			index = 0
		} else {
			return nil, fmt.Errorf("libor: numeraire requires a tenor time, got %g", time)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.numeraires) <= index {
		if err := s.extendNumeraire(); err != nil {
			return nil, err
		}
	}
	return s.numeraires[index], nil
}

// extendNumeraire appends the numeraire at the next tenor time. Must be
// called with the lock held.
func (s *Simulation) extendNumeraire() error {
	paths := s.scheme.NumberOfPaths()
	if len(s.numeraires) == 0 {
		ones := make([]float64, paths)
		for p := range ones {
			ones[p] = 1.0
		}
		s.numeraires = append(s.numeraires, ones)
		return nil
	}

	period := len(s.numeraires) - 1
	fixing := s.model.tenor.Time(period)
	deltaT := s.model.tenor.TimeStep(period)
	timeIndex, ok := s.model.grid.TimeIndex(fixing)
	if !ok {
		return fmt.Errorf("libor: tenor time %g not on the simulation grid", fixing)
	}
	forward, err := s.scheme.RealizationComponent(timeIndex, period)
	if err != nil {
		return err
	}

	previous := s.numeraires[period]
	next := make([]float64, paths)
	for p := 0; p < paths; p++ {
		next[p] = previous[p] * (1.0 + deltaT*forward[p])
	}
	s.numeraires = append(s.numeraires, next)
	return nil
}
