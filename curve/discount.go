package curve

import (
	"fmt"

	"github.com/banachtech/tenor/interp"
)

// DiscountCurve holds discount factors indexed by maturity. Discount factors
// are interpolated on log value with a cubic spline and constant
// extrapolation.
type DiscountCurve struct {
	*Curve
}

// NewDiscountCurve constructs an empty discount factor curve.
func NewDiscountCurve(name string) *DiscountCurve {
	return &DiscountCurve{
		Curve: New(name, interp.MethodCubicSpline, interp.ExtrapolationConstant, EntityLogOfValue),
	}
}

// NewDiscountCurveFromDiscountFactors constructs a discount curve from
// matched maturities and discount factors.
func NewDiscountCurveFromDiscountFactors(name string, maturities, discountFactors []float64) (*DiscountCurve, error) {
	c := NewDiscountCurve(name)
	if len(maturities) != len(discountFactors) {
		return nil, fmt.Errorf("curve %s: %d maturities but %d discount factors", name, len(maturities), len(discountFactors))
	}
	for i := range maturities {
		if err := c.AddPoint(maturities[i], discountFactors[i]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DiscountFactor returns the discount factor for the given maturity.
func (c *DiscountCurve) DiscountFactor(model Model, maturity float64) (float64, error) {
	return c.ValueInModel(model, maturity)
}

// WithParameter returns an independent discount curve holding the given
// parameter.
func (c *DiscountCurve) WithParameter(parameter []float64) (Interface, error) {
	clone := c.Curve.clone()
	if err := clone.SetParameter(parameter); err != nil {
		return nil, err
	}
	return &DiscountCurve{Curve: clone}, nil
}
