package calibration

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/banachtech/tenor/curve"
	"github.com/banachtech/tenor/optimizer"
)

const (
	defaultSolverIterations = 400
	defaultSolverAccuracy   = 1e-18
)

// Solver fits the joint parameter vector of a set of curves so that the
// given products reproduce their target values on the model. Every trial
// applies parameters to clones, the registered originals are never touched.
// Zero fields select the defaults.
type Solver struct {
	MaxIterations int
	// Accuracy is the weighted mean squared error at which the fit counts
	// as converged.
	Accuracy float64

	Logger zerolog.Logger

	model    *AnalyticModel
	products []Product
	targets  []float64

	iterations int
	converged  bool
}

func NewSolver(model *AnalyticModel, products []Product, targetValues []float64) (*Solver, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("calibration: no products")
	}
	if len(products) != len(targetValues) {
		return nil, fmt.Errorf("calibration: %d products but %d target values", len(products), len(targetValues))
	}
	return &Solver{
		Logger:   zerolog.Nop(),
		model:    model,
		products: products,
		targets:  append([]float64(nil), targetValues...),
	}, nil
}

// Calibrate solves for the parameters of the given curves and returns the
// model holding the calibrated copies. The order of the curves defines the
// layout of the joint parameter vector.
func (s *Solver) Calibrate(curves []curve.Interface) (*AnalyticModel, error) {
	if len(curves) == 0 {
		return nil, fmt.Errorf("calibration: no curves to calibrate")
	}
	sizes := make([]int, len(curves))
	initial := make([]float64, 0)
	for i, c := range curves {
		parameter := c.Parameter()
		sizes[i] = len(parameter)
		initial = append(initial, parameter...)
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("calibration: curves carry no parameters")
	}

	values := func(parameter, values []float64) error {
		trial, err := s.applied(curves, sizes, parameter)
		if err != nil {
			return err
		}
		for i, product := range s.products {
			value, err := product.Value(trial)
			if err != nil {
				return fmt.Errorf("product %d: %w", i, err)
			}
			values[i] = value
		}
		return nil
	}

	maxIterations := s.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultSolverIterations
	}
	accuracy := s.Accuracy
	if accuracy <= 0 {
		accuracy = defaultSolverAccuracy
	}

	lm := optimizer.NewLevenbergMarquardt(values, initial, s.targets)
	lm.MaxIterations = maxIterations
	lm.ErrorTolerance = accuracy
	lm.Logger = s.Logger
	if err := lm.Run(); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	s.iterations = lm.Iterations()
	s.converged = lm.Converged()

	s.Logger.Info().
		Int("curves", len(curves)).
		Int("products", len(s.products)).
		Int("iterations", s.iterations).
		Bool("converged", s.converged).
		Float64("mean_squared_error", lm.MeanSquaredError()).
		Msg("Calibrated curves")

	return s.applied(curves, sizes, lm.BestFitParameters())
}

// Iterations returns the trial count of the last Calibrate run.
func (s *Solver) Iterations() int { return s.iterations }

// Converged reports whether the last Calibrate run met its tolerance.
func (s *Solver) Converged() bool { return s.converged }

// applied splits the joint vector along the curves and returns the model
// with the parameterized clones in place.
func (s *Solver) applied(curves []curve.Interface, sizes []int, parameter []float64) (*AnalyticModel, error) {
	clones := make([]curve.Interface, len(curves))
	offset := 0
	for i, c := range curves {
		clone, err := c.WithParameter(parameter[offset : offset+sizes[i]])
		if err != nil {
			return nil, err
		}
		clones[i] = clone
		offset += sizes[i]
	}
	return s.model.WithCalibratedCurves(clones...), nil
}
