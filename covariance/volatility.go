package covariance

import (
	"fmt"
	"math"

	"github.com/banachtech/tenor/timegrid"
)

// VolatilityModel is the instantaneous volatility term structure of a
// covariance model: volatility of a tenor component at a simulation time.
type VolatilityModel interface {
	Volatility(timeIndex, component int) float64
	// Parameter returns the calibrateable parameters, zero length if the
	// model is fixed.
	Parameter() []float64
	SetParameter(parameter []float64) error
	Clone() VolatilityModel
}

// FourParameterExponential is the volatility term structure
//
//	sigma(t,T) = (a + b (T-t)) exp(-c (T-t)) + d,
//
// floored at zero. Components whose period start is not after t carry no
// volatility, their forward is already fixed.
type FourParameterExponential struct {
	grid  *timegrid.TimeDiscretization
	tenor *timegrid.TimeDiscretization

	a, b, c, d    float64
	calibrateable bool
}

// NewFourParameterExponential constructs the term structure over the given
// simulation grid and tenor grid. If calibrateable is false the parameters
// are fixed and excluded from calibration.
func NewFourParameterExponential(grid, tenor *timegrid.TimeDiscretization, a, b, c, d float64, calibrateable bool) *FourParameterExponential {
	return &FourParameterExponential{grid: grid, tenor: tenor, a: a, b: b, c: c, d: d, calibrateable: calibrateable}
}

// Volatility returns sigma(t_timeIndex, T_component).
func (v *FourParameterExponential) Volatility(timeIndex, component int) float64 {
	timeToMaturity := v.tenor.Time(component) - v.grid.Time(timeIndex)
	if timeToMaturity <= 0 {
		return 0.0
	}
	volatility := (v.a+v.b*timeToMaturity)*math.Exp(-v.c*timeToMaturity) + v.d
	return math.Max(volatility, 0.0)
}

func (v *FourParameterExponential) Parameter() []float64 {
	if !v.calibrateable {
		return nil
	}
	return []float64{v.a, v.b, v.c, v.d}
}

func (v *FourParameterExponential) SetParameter(parameter []float64) error {
	if !v.calibrateable {
		return nil
	}
	if len(parameter) != 4 {
		return fmt.Errorf("covariance: volatility parameter length %d, want 4", len(parameter))
	}
	v.a, v.b, v.c, v.d = parameter[0], parameter[1], parameter[2], parameter[3]
	return nil
}

func (v *FourParameterExponential) Clone() VolatilityModel {
	clone := *v
	return &clone
}
