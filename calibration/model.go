package calibration

import (
	"fmt"

	"github.com/banachtech/tenor/curve"
)

// AnalyticModel is a registry of named curves. It implements curve.Model,
// so curves defined in terms of other curves resolve their references
// through it. Mutation is construction time only; calibration trials work
// on copies from WithCalibratedCurves.
type AnalyticModel struct {
	curves map[string]curve.Interface
}

func NewAnalyticModel(curves ...curve.Interface) *AnalyticModel {
	model := &AnalyticModel{curves: make(map[string]curve.Interface, len(curves))}
	for _, c := range curves {
		model.curves[c.Name()] = c
	}
	return model
}

// Curve returns the curve registered under the given name.
func (m *AnalyticModel) Curve(name string) (curve.Interface, error) {
	c, ok := m.curves[name]
	if !ok {
		return nil, fmt.Errorf("calibration: no curve %q in the model", name)
	}
	return c, nil
}

// DiscountCurve returns the named curve as a discount curve.
func (m *AnalyticModel) DiscountCurve(name string) (*curve.DiscountCurve, error) {
	c, err := m.Curve(name)
	if err != nil {
		return nil, err
	}
	discount, ok := c.(*curve.DiscountCurve)
	if !ok {
		return nil, fmt.Errorf("calibration: curve %q is not a discount curve", name)
	}
	return discount, nil
}

// ForwardCurve returns the named curve as a forward curve.
func (m *AnalyticModel) ForwardCurve(name string) (*curve.ForwardCurve, error) {
	c, err := m.Curve(name)
	if err != nil {
		return nil, err
	}
	forward, ok := c.(*curve.ForwardCurve)
	if !ok {
		return nil, fmt.Errorf("calibration: curve %q is not a forward curve", name)
	}
	return forward, nil
}

// SetCurve registers the curve under its name, replacing any previous one.
func (m *AnalyticModel) SetCurve(c curve.Interface) { m.curves[c.Name()] = c }

// WithCalibratedCurves returns a model where the given curves replace their
// namesakes. The receiver is unchanged.
func (m *AnalyticModel) WithCalibratedCurves(curves ...curve.Interface) *AnalyticModel {
	clone := &AnalyticModel{curves: make(map[string]curve.Interface, len(m.curves))}
	for name, c := range m.curves {
		clone.curves[name] = c
	}
	for _, c := range curves {
		clone.curves[c.Name()] = c
	}
	return clone
}
