package curve

import "math"

// SeasonalCurve wraps a base curve holding one period of seasonal
// adjustments on [0,1) and evaluates it at the year fraction of the
// requested time.
type SeasonalCurve struct {
	name string
	base Interface
}

// NewSeasonalCurve constructs a seasonal curve over the given base curve.
func NewSeasonalCurve(name string, base Interface) *SeasonalCurve {
	return &SeasonalCurve{name: name, base: base}
}

func (c *SeasonalCurve) Name() string { return c.name }

func (c *SeasonalCurve) Value(time float64) (float64, error) {
	return c.ValueInModel(nil, time)
}

// ValueInModel evaluates the base curve at time - floor(time).
func (c *SeasonalCurve) ValueInModel(model Model, time float64) (float64, error) {
	return c.base.ValueInModel(model, time-math.Floor(time))
}

func (c *SeasonalCurve) Parameter() []float64 { return c.base.Parameter() }

func (c *SeasonalCurve) SetParameter(parameter []float64) error {
	return c.base.SetParameter(parameter)
}

// WithParameter returns an independent seasonal curve over an independent
// copy of the base curve.
func (c *SeasonalCurve) WithParameter(parameter []float64) (Interface, error) {
	base, err := c.base.WithParameter(parameter)
	if err != nil {
		return nil, err
	}
	return &SeasonalCurve{name: c.name, base: base}, nil
}
