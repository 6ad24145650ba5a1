package libor

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/banachtech/tenor/covariance"
	"github.com/banachtech/tenor/montecarlo"
	"github.com/banachtech/tenor/optimizer"
)

const (
	defaultCalibrationPaths = 2000
	defaultCalibrationSeed  = 31415
	defaultMaxIterations    = 400

	// fallbackParameter is the conventional volatility-scale starting
	// point used when a calibration restarts after a degenerate system.
	fallbackParameter = 0.2
)

// CalibrationProduct pairs a product with its market target value. Weight
// scales the product's residual in the objective; zero excludes it.
type CalibrationProduct struct {
	Product     Product
	TargetValue float64
	Weight      float64
}

// CalibrationResult is the outcome of a calibration. Model carries the
// calibrated covariance model; Converged false with a full iteration count
// means the caller decides whether the best fit is good enough.
type CalibrationResult struct {
	Parameters       []float64
	MeanSquaredError float64
	Iterations       int
	Converged        bool
	Model            *MarketModel
}

// Calibrator fits a model's covariance parameters so that the model prices
// of the calibration products match their target values. Every trial
// parameter vector is valued against a fresh simulation over one shared
// noise source, so repeated runs are reproducible bit for bit. Zero fields
// select the defaults.
type Calibrator struct {
	Paths         int
	Seed          uint64
	MaxIterations int
	// Accuracy is the weighted mean squared error at which the fit counts
	// as converged.
	Accuracy float64
	// Workers bounds the number of products valued concurrently within one
	// trial. Defaults to the number of CPUs.
	Workers int
	// FallbackParameters is the restart point after a degenerate system.
	// Defaults to a flat volatility-scale vector.
	FallbackParameters []float64

	Logger   zerolog.Logger
	Progress bool
}

// Calibrate runs the fit and returns the calibrated model. A degenerate
// least squares system is retried once from the fallback parameters; a
// second failure is returned to the caller.
func (c *Calibrator) Calibrate(model *MarketModel, products []CalibrationProduct) (*CalibrationResult, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("libor: no calibration products")
	}
	for i := range products {
		if products[i].Product == nil {
			return nil, fmt.Errorf("libor: calibration product %d has no product", i)
		}
	}
	initial := model.Covariance().Parameter()
	if len(initial) == 0 {
		return nil, fmt.Errorf("libor: covariance model is not calibrateable")
	}

	paths := c.Paths
	if paths <= 0 {
		paths = defaultCalibrationPaths
	}
	seed := c.Seed
	if seed == 0 {
		seed = defaultCalibrationSeed
	}
	maxIterations := c.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	targets := make([]float64, len(products))
	weights := make([]float64, len(products))
	for i, product := range products {
		targets[i] = product.TargetValue
		weights[i] = product.Weight
	}

	brownian := montecarlo.NewBrownianMotion(model.grid, model.NumberOfFactors(), paths, seed)
	log := c.Logger.With().Str("component", "calibrator").Logger()

	values := func(parameter, values []float64) error {
		return c.trialValues(model, brownian, products, workers, parameter, values)
	}
	run := func(start []float64) (*optimizer.LevenbergMarquardt, error) {
		lm := optimizer.NewLevenbergMarquardt(values, start, targets)
		lm.Weights = weights
		lm.MaxIterations = maxIterations
		lm.ErrorTolerance = c.Accuracy
		lm.Logger = log
		lm.Progress = c.Progress
		return lm, lm.Run()
	}

	log.Info().
		Int("products", len(products)).
		Int("parameters", len(initial)).
		Int("paths", paths).
		Uint64("seed", seed).
		Msg("Calibrating covariance model")

	lm, err := run(initial)
	if err != nil {
		if !errors.Is(err, optimizer.ErrDegenerate) {
			return nil, err
		}
		fallback := c.FallbackParameters
		if fallback == nil {
			fallback = make([]float64, len(initial))
			for i := range fallback {
				fallback[i] = fallbackParameter
			}
		} else if len(fallback) != len(initial) {
			return nil, fmt.Errorf("libor: %d fallback parameters for %d model parameters", len(fallback), len(initial))
		}
		log.Warn().
			Err(err).
			Msg("Degenerate system, retrying from fallback parameters")
		lm, err = run(fallback)
		if err != nil {
			return nil, fmt.Errorf("libor: calibration failed after fallback retry: %w", err)
		}
	}

	best := lm.BestFitParameters()
	calibrated, err := covariance.WithParameter(model.Covariance(), best)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("iterations", lm.Iterations()).
		Bool("converged", lm.Converged()).
		Float64("mean_squared_error", lm.MeanSquaredError()).
		Msg("Calibration finished")

	return &CalibrationResult{
		Parameters:       best,
		MeanSquaredError: lm.MeanSquaredError(),
		Iterations:       lm.Iterations(),
		Converged:        lm.Converged(),
		Model:            model.WithCovarianceModel(calibrated),
	}, nil
}

// trialValues values every product against a simulation of the model under
// the trial parameter vector, writing results by product index. The worker
// pool lives for one trial; the first failure cancels the trial.
func (c *Calibrator) trialValues(model *MarketModel, brownian montecarlo.BrownianMotion, products []CalibrationProduct, workers int, parameter, values []float64) error {
	trial, err := covariance.WithParameter(model.Covariance(), parameter)
	if err != nil {
		return err
	}
	simulation, err := NewSimulation(model.WithCovarianceModel(trial), brownian)
	if err != nil {
		return err
	}

	var group errgroup.Group
	group.SetLimit(workers)
	for i := range products {
		i := i
		group.Go(func() error {
			value, err := products[i].Product.Value(simulation)
			if err != nil {
				return fmt.Errorf("product %d: %w", i, err)
			}
			values[i] = value
			return nil
		})
	}
	return group.Wait()
}
