// Package calibration bootstraps discount and forward curves from market
// instruments. Every calibration spec contributes one product and one curve
// point; a joint least squares solve over all registered curves makes the
// curves reprice their instruments.
package calibration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banachtech/tenor/curve"
)

// ErrUnknownProductType is returned for a calibration spec whose type is
// none of "swap", "swapleg", "zerobond".
var ErrUnknownProductType = errors.New("calibration: unknown product type")

// placeholderValue seeds the calibration point; the solver moves it to its
// calibrated level.
const placeholderValue = 0.5

// CalibrationSpec describes one calibration instrument: the product built
// from the receiver and payer legs, the curve receiving the spec's degree
// of freedom, and the market value the product has to reproduce.
type CalibrationSpec struct {
	// Type selects the product: "swap", "swapleg" or "zerobond".
	Type string

	ScheduleReceiver          Schedule
	ForwardCurveReceiverName  string
	SpreadReceiver            float64
	DiscountCurveReceiverName string

	SchedulePayer          Schedule
	ForwardCurvePayerName  string
	SpreadPayer            float64
	DiscountCurvePayerName string

	// CalibrationCurveName names the curve taking the calibration point.
	// CalibrationTime places the point when no schedule does; for
	// "zerobond" it doubles as the bond maturity.
	CalibrationCurveName string
	CalibrationTime      float64
	TargetValue          float64
}

// CalibratedCurves creates the curves referenced by the specs, equips each
// calibration curve with one point per spec and solves all registered
// curves jointly so that every product values to its target.
type CalibratedCurves struct {
	model      *AnalyticModel
	products   []Product
	targets    []float64
	curveNames []string
	iterations int
}

// NewCalibratedCurves calibrates a fresh model from the given specs.
func NewCalibratedCurves(specs []CalibrationSpec) (*CalibratedCurves, error) {
	return NewCalibratedCurvesWithModel(specs, NewAnalyticModel())
}

// NewCalibratedCurvesWithModel calibrates on top of an existing model, for
// example adding a forward curve next to discount curves already in place.
// Referenced curves absent from the model are created empty; curves already
// present are reused, never duplicated.
func NewCalibratedCurvesWithModel(specs []CalibrationSpec, model *AnalyticModel) (*CalibratedCurves, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("calibration: no calibration specs")
	}
	c := &CalibratedCurves{model: model}
	for i := range specs {
		if err := c.add(specs[i]); err != nil {
			return nil, fmt.Errorf("spec %d: %w", i, err)
		}
	}
	if err := c.calibrate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Model returns the calibrated model.
func (c *CalibratedCurves) Model() *AnalyticModel { return c.model }

// Curve returns a calibrated curve by name.
func (c *CalibratedCurves) Curve(name string) (curve.Interface, error) {
	return c.model.Curve(name)
}

// LastNumberOfIterations returns the iteration count of the joint solve.
func (c *CalibratedCurves) LastNumberOfIterations() int { return c.iterations }

// add builds the spec's product, places the spec's point on the
// calibration curve and registers the curve for the solve. Discount curves
// take the point at the last payment, forward curves at the last fixing
// together with the period's payment offset, any other curve at the
// calibration time.
func (c *CalibratedCurves) add(spec CalibrationSpec) error {
	product, err := c.productForSpec(spec)
	if err != nil {
		return err
	}
	c.products = append(c.products, product)
	c.targets = append(c.targets, spec.TargetValue)

	target, err := c.model.Curve(spec.CalibrationCurveName)
	if err != nil {
		return err
	}
	schedule := spec.SchedulePayer
	if schedule == nil {
		schedule = spec.ScheduleReceiver
	}
	switch target := target.(type) {
	case *curve.DiscountCurve:
		time := spec.CalibrationTime
		if schedule != nil && schedule.NumberOfPeriods() > 0 {
			time = schedule.Payment(schedule.NumberOfPeriods() - 1)
		}
		if err := target.AddPoint(time, placeholderValue); err != nil {
			return err
		}
	case *curve.ForwardCurve:
		if schedule == nil || schedule.NumberOfPeriods() == 0 {
			return fmt.Errorf("calibration: forward calibration curve %q needs a schedule", spec.CalibrationCurveName)
		}
		last := schedule.NumberOfPeriods() - 1
		fixing, payment := schedule.Fixing(last), schedule.Payment(last)
		if err := target.PaymentOffsets().AddPoint(fixing, payment-fixing); err != nil {
			return err
		}
		if err := target.AddPoint(fixing, placeholderValue); err != nil {
			return err
		}
	default:
		adder, ok := target.(interface{ AddPoint(time, value float64) error })
		if !ok {
			return fmt.Errorf("calibration: curve %q cannot take calibration points", spec.CalibrationCurveName)
		}
		if err := adder.AddPoint(spec.CalibrationTime, placeholderValue); err != nil {
			return err
		}
	}
	c.registerCalibrationCurve(spec.CalibrationCurveName)
	return nil
}

func (c *CalibratedCurves) productForSpec(spec CalibrationSpec) (Product, error) {
	if err := c.createDiscountCurve(spec.DiscountCurveReceiverName); err != nil {
		return nil, err
	}
	if err := c.createDiscountCurve(spec.DiscountCurvePayerName); err != nil {
		return nil, err
	}
	forwardReceiver, err := c.createForwardCurve(spec.ScheduleReceiver, spec.ForwardCurveReceiverName)
	if err != nil {
		return nil, err
	}
	forwardPayer, err := c.createForwardCurve(spec.SchedulePayer, spec.ForwardCurvePayerName)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(spec.Type) {
	case "swap":
		if spec.ScheduleReceiver == nil || spec.SchedulePayer == nil {
			return nil, fmt.Errorf("calibration: swap spec needs receiver and payer schedules")
		}
		return Swap{
			Receiver: SwapLeg{
				Schedule:          spec.ScheduleReceiver,
				ForwardCurveName:  forwardReceiver,
				Spread:            spec.SpreadReceiver,
				DiscountCurveName: spec.DiscountCurveReceiverName,
			},
			Payer: SwapLeg{
				Schedule:          spec.SchedulePayer,
				ForwardCurveName:  forwardPayer,
				Spread:            spec.SpreadPayer,
				DiscountCurveName: spec.DiscountCurvePayerName,
			},
		}, nil
	case "swapleg":
		if spec.ScheduleReceiver == nil {
			return nil, fmt.Errorf("calibration: swap leg spec needs a receiver schedule")
		}
		return SwapLeg{
			Schedule:          spec.ScheduleReceiver,
			ForwardCurveName:  forwardReceiver,
			Spread:            spec.SpreadReceiver,
			DiscountCurveName: spec.DiscountCurveReceiverName,
			NotionalExchange:  true,
		}, nil
	case "zerobond":
		if spec.DiscountCurveReceiverName == "" {
			return nil, fmt.Errorf("calibration: zero bond spec needs a discount curve")
		}
		return ZeroCouponBond{
			Maturity:          spec.CalibrationTime,
			DiscountCurveName: spec.DiscountCurveReceiverName,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProductType, spec.Type)
	}
}

// createDiscountCurve resolves the named discount curve, creating an empty
// one when the model has none.
func (c *CalibratedCurves) createDiscountCurve(name string) error {
	if name == "" {
		return nil
	}
	existing, err := c.model.Curve(name)
	if err != nil {
		c.model.SetCurve(curve.NewDiscountCurve(name))
		return nil
	}
	if _, ok := existing.(*curve.DiscountCurve); !ok {
		return fmt.Errorf("calibration: curve %q is not a discount curve", name)
	}
	return nil
}

// createForwardCurve resolves the named forward curve and returns the name
// the product has to reference. A name held by a discount curve selects the
// single curve setup: forwards are read off the discount factors through a
// wrapping forward curve with the schedule's period length as payment
// offset.
func (c *CalibratedCurves) createForwardCurve(schedule Schedule, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	existing, err := c.model.Curve(name)
	if err != nil {
		c.model.SetCurve(curve.NewForwardCurve(name))
		return name, nil
	}
	switch existing.(type) {
	case *curve.ForwardCurve:
		return name, nil
	case *curve.DiscountCurve:
		if schedule == nil || schedule.NumberOfPeriods() == 0 {
			return "", fmt.Errorf("calibration: projecting forwards off discount curve %q needs a schedule", name)
		}
		forward := curve.NewForwardCurveFromDiscountCurve(name, schedule.PeriodLength(0))
		c.model.SetCurve(forward)
		return forward.Name(), nil
	default:
		return "", fmt.Errorf("calibration: curve %q is not usable as a forward curve", name)
	}
}

func (c *CalibratedCurves) registerCalibrationCurve(name string) {
	for _, existing := range c.curveNames {
		if existing == name {
			return
		}
	}
	c.curveNames = append(c.curveNames, name)
}

func (c *CalibratedCurves) calibrate() error {
	curves := make([]curve.Interface, len(c.curveNames))
	for i, name := range c.curveNames {
		registered, err := c.model.Curve(name)
		if err != nil {
			return err
		}
		curves[i] = registered
	}
	solver, err := NewSolver(c.model, c.products, c.targets)
	if err != nil {
		return err
	}
	model, err := solver.Calibrate(curves)
	if err != nil {
		return err
	}
	c.model = model
	c.iterations = solver.Iterations()
	return nil
}
