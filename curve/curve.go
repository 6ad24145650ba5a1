// Package curve provides piecewise-interpolated market curves such as
// discount factor and forward rate curves. A curve owns an ordered set of
// points, an interpolation and extrapolation policy and an interpolation
// entity, i.e. the transform under which values are interpolated.
package curve

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/banachtech/tenor/interp"
)

// Entity selects the quantity that enters the interpolation engine.
type Entity int

const (
	EntityValue Entity = iota
	EntityLogOfValue
	// EntityLogOfValuePerTime interpolates log(v)/t. Points cannot be stored
	// at t = 0 under this entity; evaluation at t = 0 is still defined and
	// returns 1 through the inverse transform exp(x*t).
	EntityLogOfValuePerTime
)

var (
	ErrPointConflict = errors.New("curve: point exists with a different value")
	ErrZeroTime      = errors.New("curve: log of value per time undefined at time zero")
)

// Model resolves curves by name. It is passed on evaluation to curves that
// are defined in terms of other named curves.
type Model interface {
	Curve(name string) (Interface, error)
}

// Interface is the contract every curve satisfies. The parameter vector
// carries the untransformed point values in time order and is the handle the
// calibration layer manipulates.
type Interface interface {
	Name() string
	Value(time float64) (float64, error)
	ValueInModel(model Model, time float64) (float64, error)
	Parameter() []float64
	SetParameter(parameter []float64) error
	// WithParameter returns an independent copy of the curve holding the
	// given parameter. The copy shares no mutable state with the original.
	WithParameter(parameter []float64) (Interface, error)
}

// Point is a single curve point. Value holds the transformed value.
type Point struct {
	Time  float64
	Value float64
}

// Curve is the basic point-set curve. The interpolation engine over the
// transformed point values is built lazily and cached until the next
// mutation. The cache rebuild is guarded so that concurrent readers share a
// single build.
type Curve struct {
	name          string
	method        interp.Method
	extrapolation interp.Extrapolation
	entity        Entity

	mu     sync.Mutex
	points []Point
	engine *interp.RationalFunctionInterpolation
}

// New constructs an empty curve.
func New(name string, method interp.Method, extrapolation interp.Extrapolation, entity Entity) *Curve {
	return &Curve{name: name, method: method, extrapolation: extrapolation, entity: entity}
}

// NewFromValues constructs a curve from matched times and untransformed
// values.
func NewFromValues(name string, method interp.Method, extrapolation interp.Extrapolation, entity Entity, times, values []float64) (*Curve, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("curve %s: %d times but %d values", name, len(times), len(values))
	}
	c := New(name, method, extrapolation, entity)
	for i := range times {
		if err := c.AddPoint(times[i], values[i]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Curve) Name() string { return c.name }

// AddPoint inserts a (time, value) pair keeping points ordered by time.
// Re-adding an existing time with the same value is a no-op; a different
// value fails with ErrPointConflict. The cached interpolant is invalidated.
func (c *Curve) AddPoint(time, value float64) error {
	transformed, err := c.transform(time, value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := sort.Search(len(c.points), func(i int) bool { return c.points[i].Time >= time })
	if i < len(c.points) && c.points[i].Time == time {
		if c.points[i].Value == transformed {
			return nil
		}
		return fmt.Errorf("curve %s: time %g: %w", c.name, time, ErrPointConflict)
	}
	c.points = append(c.points, Point{})
	copy(c.points[i+1:], c.points[i:])
	c.points[i] = Point{Time: time, Value: transformed}
	c.engine = nil
	return nil
}

// Value evaluates the curve at the given time.
func (c *Curve) Value(time float64) (float64, error) {
	return c.ValueInModel(nil, time)
}

// ValueInModel evaluates the curve at the given time. Plain curves ignore
// the model.
func (c *Curve) ValueInModel(_ Model, time float64) (float64, error) {
	engine, err := c.interpolant()
	if err != nil {
		return 0, err
	}
	return c.inverseTransform(time, engine.Value(time)), nil
}

// interpolant returns the cached engine, building it under the lock if a
// mutation invalidated it. The engine itself is immutable, so evaluation
// happens outside the lock.
func (c *Curve) interpolant() (*interp.RationalFunctionInterpolation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return c.engine, nil
	}
	times := make([]float64, len(c.points))
	values := make([]float64, len(c.points))
	for i, p := range c.points {
		times[i] = p.Time
		values[i] = p.Value
	}
	engine, err := interp.New(times, values, c.method, c.extrapolation)
	if err != nil {
		return nil, fmt.Errorf("curve %s: %w", c.name, err)
	}
	c.engine = engine
	return engine, nil
}

// Parameter returns the untransformed point values in time order.
func (c *Curve) Parameter() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	parameter := make([]float64, len(c.points))
	for i, p := range c.points {
		parameter[i] = c.inverseTransform(p.Time, p.Value)
	}
	return parameter
}

// SetParameter replaces all point values, keeping times fixed. The cached
// interpolant is invalidated. On error the curve is unchanged.
func (c *Curve) SetParameter(parameter []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(parameter) != len(c.points) {
		return fmt.Errorf("curve %s: parameter length %d does not match %d points", c.name, len(parameter), len(c.points))
	}
	transformed := make([]float64, len(parameter))
	for i, v := range parameter {
		tv, err := c.transform(c.points[i].Time, v)
		if err != nil {
			return err
		}
		transformed[i] = tv
	}
	for i := range c.points {
		c.points[i].Value = transformed[i]
	}
	c.engine = nil
	return nil
}

// WithParameter returns an independent copy of the curve holding the given
// parameter.
func (c *Curve) WithParameter(parameter []float64) (Interface, error) {
	clone := c.clone()
	if err := clone.SetParameter(parameter); err != nil {
		return nil, err
	}
	return clone, nil
}

func (c *Curve) clone() *Curve {
	c.mu.Lock()
	defer c.mu.Unlock()
	points := make([]Point, len(c.points))
	copy(points, c.points)
	return &Curve{
		name:          c.name,
		method:        c.method,
		extrapolation: c.extrapolation,
		entity:        c.entity,
		points:        points,
	}
}

// Points returns a copy of the stored, transformed points.
func (c *Curve) Points() []Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	points := make([]Point, len(c.points))
	copy(points, c.points)
	return points
}

func (c *Curve) transform(time, value float64) (float64, error) {
	switch c.entity {
	case EntityLogOfValue:
		if value <= 0 {
			return 0, fmt.Errorf("curve %s: log of non-positive value %g", c.name, value)
		}
		return math.Log(value), nil
	case EntityLogOfValuePerTime:
		if time == 0 {
			return 0, fmt.Errorf("curve %s: %w", c.name, ErrZeroTime)
		}
		if value <= 0 {
			return 0, fmt.Errorf("curve %s: log of non-positive value %g", c.name, value)
		}
		return math.Log(value) / time, nil
	default:
		return value, nil
	}
}

func (c *Curve) inverseTransform(time, transformed float64) float64 {
	switch c.entity {
	case EntityLogOfValue:
		return math.Exp(transformed)
	case EntityLogOfValuePerTime:
		return math.Exp(transformed * time)
	default:
		return transformed
	}
}
