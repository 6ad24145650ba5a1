package curve

import (
	"fmt"

	"github.com/banachtech/tenor/interp"
)

// ForwardCurve holds forward rates at their fixing times together with the
// payment offset of each fixing. When constructed from a discount curve the
// forwards are not read from own points but computed from the discount
// factors of the named curve.
type ForwardCurve struct {
	*Curve
	paymentOffsets *Curve

	discountCurveName string
	paymentOffset     float64
}

// NewForwardCurve constructs an empty forward curve. Forwards are stored
// untransformed and interpolated linearly with constant extrapolation.
func NewForwardCurve(name string) *ForwardCurve {
	return &ForwardCurve{
		Curve:          New(name, interp.MethodLinear, interp.ExtrapolationConstant, EntityValue),
		paymentOffsets: New(name+" payment offsets", interp.MethodLinear, interp.ExtrapolationConstant, EntityValue),
	}
}

// NewForwardCurveFromDiscountCurve constructs a forward curve reading its
// forwards off the named discount curve as (df(t)/df(t+p) - 1)/p with a
// fixed payment offset p.
func NewForwardCurveFromDiscountCurve(discountCurveName string, paymentOffset float64) *ForwardCurve {
	c := NewForwardCurve(fmt.Sprintf("ForwardCurveFromDiscountCurve(%s)", discountCurveName))
	c.discountCurveName = discountCurveName
	c.paymentOffset = paymentOffset
	return c
}

// Forward returns the forward for the given fixing time.
func (c *ForwardCurve) Forward(model Model, fixing float64) (float64, error) {
	if c.discountCurveName == "" {
		return c.ValueInModel(model, fixing)
	}
	if model == nil {
		return 0, fmt.Errorf("curve %s: model required to resolve discount curve %q", c.Name(), c.discountCurveName)
	}
	discount, err := model.Curve(c.discountCurveName)
	if err != nil {
		return 0, err
	}
	offset, err := c.PaymentOffset(fixing)
	if err != nil {
		return 0, err
	}
	dfFixing, err := discount.ValueInModel(model, fixing)
	if err != nil {
		return 0, err
	}
	dfPayment, err := discount.ValueInModel(model, fixing+offset)
	if err != nil {
		return 0, err
	}
	return (dfFixing/dfPayment - 1.0) / offset, nil
}

// PaymentOffset returns the payment offset for the given fixing time.
func (c *ForwardCurve) PaymentOffset(fixing float64) (float64, error) {
	if c.discountCurveName != "" {
		return c.paymentOffset, nil
	}
	offset, err := c.paymentOffsets.Value(fixing)
	if err != nil {
		return 0, fmt.Errorf("curve %s: payment offset: %w", c.Name(), err)
	}
	return offset, nil
}

// PaymentOffsets returns the curve of payment offsets by fixing time.
func (c *ForwardCurve) PaymentOffsets() *Curve { return c.paymentOffsets }

// WithParameter returns an independent forward curve holding the given
// parameter. The payment offsets are copied along.
func (c *ForwardCurve) WithParameter(parameter []float64) (Interface, error) {
	clone := c.Curve.clone()
	if err := clone.SetParameter(parameter); err != nil {
		return nil, err
	}
	return &ForwardCurve{
		Curve:             clone,
		paymentOffsets:    c.paymentOffsets.clone(),
		discountCurveName: c.discountCurveName,
		paymentOffset:     c.paymentOffset,
	}, nil
}
