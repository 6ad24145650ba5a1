// Package optimizer provides the damped least-squares solver shared by
// covariance model calibration and curve calibration.
package optimizer

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when the damped normal equations cannot be
// solved for any damping, typically because the objective has no
// sensitivity to the parameters.
var ErrDegenerate = errors.New("optimizer: degenerate least squares system")

const (
	defaultLambda              = 1e-3
	defaultLambdaMultiplicator = 2.0
	defaultLambdaDivisor       = 1.3
	defaultMaxIterations       = 100

	derivativeStep   = 1e-8
	maxSolveFailures = 32
)

// Values evaluates the model values for a trial parameter vector into the
// provided slice. It is called sequentially; implementations are free to
// parallelize internally.
type Values func(parameter []float64, values []float64) error

// LevenbergMarquardt minimizes the weighted mean squared error between
// model values and target values over a parameter vector, interpolating
// between gradient descent and Gauss-Newton steps
//
//	(J'WJ + lambda diag(J'WJ)) delta = J'W (value - target).
//
// The Jacobian is estimated by forward differences and reused across
// rejected steps. Configure the exported fields before calling Run.
type LevenbergMarquardt struct {
	// Weights are per-target weights, all one if nil.
	Weights []float64
	// MaxIterations bounds the number of trial steps. Reaching it is not an
	// error, the result reports Converged() false.
	MaxIterations int
	// ErrorTolerance stops the iteration once the weighted mean squared
	// error falls to or below it.
	ErrorTolerance float64
	// ParameterTolerance stops the iteration once the norm of an accepted
	// step falls below it. Zero disables the criterion.
	ParameterTolerance float64

	Lambda              float64
	LambdaMultiplicator float64
	LambdaDivisor       float64

	Logger   zerolog.Logger
	Progress bool

	values  Values
	initial []float64
	targets []float64

	parameters       []float64
	meanSquaredError float64
	iterations       int
	converged        bool
}

// NewLevenbergMarquardt constructs a solver for the given objective,
// initial parameter vector and target values.
func NewLevenbergMarquardt(values Values, initialParameters, targetValues []float64) *LevenbergMarquardt {
	return &LevenbergMarquardt{
		Logger:  zerolog.Nop(),
		values:  values,
		initial: append([]float64(nil), initialParameters...),
		targets: append([]float64(nil), targetValues...),
	}
}

// BestFitParameters returns the best parameter vector found by Run.
func (lm *LevenbergMarquardt) BestFitParameters() []float64 {
	return append([]float64(nil), lm.parameters...)
}

// MeanSquaredError returns the weighted mean squared error at the best fit.
func (lm *LevenbergMarquardt) MeanSquaredError() float64 { return lm.meanSquaredError }

// Iterations returns the number of trial steps Run performed.
func (lm *LevenbergMarquardt) Iterations() int { return lm.iterations }

// Converged reports whether Run stopped on a tolerance rather than on the
// iteration bound.
func (lm *LevenbergMarquardt) Converged() bool { return lm.converged }

// Run iterates until convergence, the iteration bound, or failure. An
// objective evaluation error aborts the run; a system that stays singular
// under growing damping returns ErrDegenerate.
func (lm *LevenbergMarquardt) Run() error {
	if lm.values == nil {
		return fmt.Errorf("optimizer: no objective")
	}
	n := len(lm.initial)
	m := len(lm.targets)
	if n == 0 || m == 0 {
		return fmt.Errorf("optimizer: %d parameters, %d targets", n, m)
	}
	weights := lm.Weights
	if weights == nil {
		weights = broadcastOnes(m)
	} else if len(weights) != m {
		return fmt.Errorf("optimizer: %d weights for %d targets", len(weights), m)
	}

	lambda := lm.Lambda
	if lambda <= 0 {
		lambda = defaultLambda
	}
	multiplicator := lm.LambdaMultiplicator
	if multiplicator <= 1 {
		multiplicator = defaultLambdaMultiplicator
	}
	divisor := lm.LambdaDivisor
	if divisor <= 1 {
		divisor = defaultLambdaDivisor
	}
	maxIterations := lm.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	lm.iterations = 0
	lm.converged = false

	parameters := append([]float64(nil), lm.initial...)
	currentValues := make([]float64, m)
	if err := lm.values(parameters, currentValues); err != nil {
		return fmt.Errorf("optimizer: initial evaluation: %w", err)
	}
	currentError := meanSquared(currentValues, lm.targets, weights)

	var bar *progressbar.ProgressBar
	if lm.Progress {
		bar = progressBar(maxIterations)
		defer bar.Finish()
	}

	jacobian := mat.NewDense(m, n, nil)
	normal := mat.NewDense(n, n, nil)
	damped := mat.NewDense(n, n, nil)
	gradient := mat.NewVecDense(n, nil)
	delta := mat.NewVecDense(n, nil)
	trial := make([]float64, n)
	trialValues := make([]float64, m)
	probe := make([]float64, m)

	derivativeValid := false
	solveFailures := 0

	for lm.iterations < maxIterations {
		lm.iterations++
		if bar != nil {
			bar.Describe(fmt.Sprintf("mse %.3e", currentError))
			bar.Add(1)
		}

		if !derivativeValid {
			if err := lm.estimateJacobian(parameters, currentValues, probe, jacobian); err != nil {
				return err
			}
			derivativeValid = true

			// normal equations J'WJ and gradient J'W (value - target)
			for j1 := 0; j1 < n; j1++ {
				g := 0.0
				for i := 0; i < m; i++ {
					g += jacobian.At(i, j1) * weights[i] * (currentValues[i] - lm.targets[i])
				}
				gradient.SetVec(j1, g)
				for j2 := j1; j2 < n; j2++ {
					a := 0.0
					for i := 0; i < m; i++ {
						a += jacobian.At(i, j1) * weights[i] * jacobian.At(i, j2)
					}
					normal.Set(j1, j2, a)
					normal.Set(j2, j1, a)
				}
			}
			maxDiagonal := 0.0
			for j := 0; j < n; j++ {
				maxDiagonal = math.Max(maxDiagonal, normal.At(j, j))
			}
			if maxDiagonal == 0 {
				return fmt.Errorf("optimizer: objective has no parameter sensitivity: %w", ErrDegenerate)
			}
		}

		damped.Copy(normal)
		for j := 0; j < n; j++ {
			damped.Set(j, j, normal.At(j, j)*(1.0+lambda))
		}
		if err := delta.SolveVec(damped, gradient); err != nil {
			solveFailures++
			if solveFailures >= maxSolveFailures {
				return fmt.Errorf("optimizer: normal equations stay singular after %d dampings: %w", solveFailures, ErrDegenerate)
			}
			lambda *= multiplicator
			continue
		}
		solveFailures = 0

		stepNorm := 0.0
		for j := 0; j < n; j++ {
			trial[j] = parameters[j] - delta.AtVec(j)
			stepNorm += delta.AtVec(j) * delta.AtVec(j)
		}
		stepNorm = math.Sqrt(stepNorm)

		if err := lm.values(trial, trialValues); err != nil {
			return fmt.Errorf("optimizer: evaluation at iteration %d: %w", lm.iterations, err)
		}
		trialError := meanSquared(trialValues, lm.targets, weights)

		lm.Logger.Debug().
			Int("iteration", lm.iterations).
			Float64("lambda", lambda).
			Float64("mean_squared_error", trialError).
			Bool("accepted", trialError < currentError).
			Msg("Levenberg-Marquardt step")

		if trialError < currentError {
			copy(parameters, trial)
			copy(currentValues, trialValues)
			currentError = trialError
			lambda /= divisor
			derivativeValid = false

			if currentError <= lm.ErrorTolerance {
				lm.converged = true
				break
			}
			if lm.ParameterTolerance > 0 && stepNorm <= lm.ParameterTolerance {
				lm.converged = true
				break
			}
		} else {
			lambda *= multiplicator
		}
	}

	lm.parameters = parameters
	lm.meanSquaredError = currentError

	lm.Logger.Info().
		Int("iterations", lm.iterations).
		Bool("converged", lm.converged).
		Float64("mean_squared_error", lm.meanSquaredError).
		Msg("Levenberg-Marquardt finished")
	return nil
}

// estimateJacobian fills the Jacobian by forward differences, one column
// per parameter, with the step scaled to the parameter's magnitude.
func (lm *LevenbergMarquardt) estimateJacobian(parameters, currentValues, probe []float64, jacobian *mat.Dense) error {
	for j := range parameters {
		saved := parameters[j]
		step := derivativeStep * math.Max(math.Abs(saved), 1.0)
		parameters[j] = saved + step
		err := lm.values(parameters, probe)
		parameters[j] = saved
		if err != nil {
			return fmt.Errorf("optimizer: derivative of parameter %d: %w", j, err)
		}
		for i := range probe {
			jacobian.Set(i, j, (probe[i]-currentValues[i])/step)
		}
	}
	return nil
}

func meanSquared(values, targets, weights []float64) float64 {
	sum := 0.0
	for i := range values {
		deviation := values[i] - targets[i]
		sum += weights[i] * deviation * deviation
	}
	return sum / float64(len(values))
}

func broadcastOnes(length int) []float64 {
	ones := make([]float64, length)
	for i := range ones {
		ones[i] = 1.0
	}
	return ones
}

// progress bar initialization
func progressBar(length int) *progressbar.ProgressBar {
	bar := progressbar.NewOptions(
		length,
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetVisibility(true),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	return bar
}
