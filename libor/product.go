package libor

import (
	"fmt"
	"math"
)

// Product values a payoff against a simulation. Implementations return the
// Monte Carlo value as of the numeraire's base time, today when the tenor
// structure starts at zero.
type Product interface {
	Value(simulation *Simulation) (float64, error)
}

// Caplet pays PeriodLength * max(L(Fixing) - Strike, 0) at
// Fixing + PeriodLength, for the forward rate of the tenor period starting
// at Fixing.
type Caplet struct {
	Fixing       float64
	PeriodLength float64
	Strike       float64
}

func (c Caplet) Value(simulation *Simulation) (float64, error) {
	tenor := simulation.TenorDiscretization()
	component, ok := tenor.TimeIndex(c.Fixing)
	if !ok || component >= tenor.NumberOfTimeSteps() {
		return 0, fmt.Errorf("libor: caplet fixing %g does not start a tenor period", c.Fixing)
	}

	forward, err := simulation.ForwardRate(c.Fixing, component)
	if err != nil {
		return 0, err
	}
	numeraire, err := simulation.Numeraire(c.Fixing + c.PeriodLength)
	if err != nil {
		return 0, err
	}

	weights := simulation.MonteCarloWeights()
	value := 0.0
	for p := range forward {
		payoff := c.PeriodLength * math.Max(forward[p]-c.Strike, 0.0)
		value += weights[p] * payoff / numeraire[p]
	}
	return value, nil
}
