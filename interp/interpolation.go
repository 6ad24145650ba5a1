// Package interp provides piecewise rational function interpolation of
// sampled curves. The supported methods use polynomial numerators with
// constant denominators, evaluated per segment.
package interp

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Method selects how values between two points are interpolated.
type Method int

const (
	MethodLinear Method = iota
	MethodCubicSpline
)

// Extrapolation selects how values outside the point range are continued.
type Extrapolation int

const (
	// ExtrapolationConstant clamps to the boundary point value.
	ExtrapolationConstant Extrapolation = iota
	// ExtrapolationLinear continues the slope of the boundary segment.
	ExtrapolationLinear
)

var ErrInsufficientPoints = errors.New("interp: at least one point required")

// RationalFunctionInterpolation interpolates an ordered set of points by
// piecewise polynomial segments with O(log n) segment lookup. Instances are
// immutable after construction and safe for concurrent use.
type RationalFunctionInterpolation struct {
	points        []float64
	values        []float64
	method        Method
	extrapolation Extrapolation

	// coefficients[i] holds the segment polynomial on [points[i], points[i+1]]
	// in ascending powers of x-points[i].
	coefficients [][]float64
}

// New builds an interpolation over the given points. The points must be
// strictly increasing and matched one-to-one by values.
func New(points, values []float64, method Method, extrapolation Extrapolation) (*RationalFunctionInterpolation, error) {
	if len(points) == 0 {
		return nil, ErrInsufficientPoints
	}
	if len(points) != len(values) {
		return nil, fmt.Errorf("interp: %d points but %d values", len(points), len(values))
	}
	for i := 1; i < len(points); i++ {
		if points[i] <= points[i-1] {
			return nil, fmt.Errorf("interp: points not strictly increasing at index %d", i)
		}
	}

	r := &RationalFunctionInterpolation{
		points:        append([]float64(nil), points...),
		values:        append([]float64(nil), values...),
		method:        method,
		extrapolation: extrapolation,
	}
	switch method {
	case MethodCubicSpline:
		if err := r.buildCubicSpline(); err != nil {
			return nil, err
		}
	default:
		r.buildLinear()
	}
	return r, nil
}

func (r *RationalFunctionInterpolation) buildLinear() {
	n := len(r.points)
	r.coefficients = make([][]float64, 0, n-1)
	for i := 0; i+1 < n; i++ {
		slope := (r.values[i+1] - r.values[i]) / (r.points[i+1] - r.points[i])
		r.coefficients = append(r.coefficients, []float64{r.values[i], slope})
	}
}

// buildCubicSpline constructs a natural cubic spline, i.e. with vanishing
// second derivative at both boundary points. The second derivatives at the
// interior points solve a tridiagonal moment system.
func (r *RationalFunctionInterpolation) buildCubicSpline() error {
	n := len(r.points)
	if n < 3 {
		// degenerates to the linear segment
		r.buildLinear()
		return nil
	}

	h := make([]float64, n-1)
	for i := range h {
		h[i] = r.points[i+1] - r.points[i]
	}

	m := n - 2
	dl := make([]float64, m-1)
	d := make([]float64, m)
	du := make([]float64, m-1)
	b := make([]float64, m)
	for j := 0; j < m; j++ {
		d[j] = (h[j] + h[j+1]) / 3.0
		b[j] = (r.values[j+2]-r.values[j+1])/h[j+1] - (r.values[j+1]-r.values[j])/h[j]
		if j < m-1 {
			du[j] = h[j+1] / 6.0
			dl[j] = h[j+1] / 6.0
		}
	}

	var u mat.VecDense
	if err := mat.NewTridiag(m, dl, d, du).SolveVecTo(&u, false, mat.NewVecDense(m, b)); err != nil {
		return fmt.Errorf("interp: spline system: %w", err)
	}

	// boundary moments are zero
	moments := make([]float64, n)
	for j := 0; j < m; j++ {
		moments[j+1] = u.AtVec(j)
	}

	r.coefficients = make([][]float64, 0, n-1)
	for i := 0; i+1 < n; i++ {
		c := []float64{
			r.values[i],
			(r.values[i+1]-r.values[i])/h[i] - h[i]*(2.0*moments[i]+moments[i+1])/6.0,
			moments[i] / 2.0,
			(moments[i+1] - moments[i]) / (6.0 * h[i]),
		}
		r.coefficients = append(r.coefficients, c)
	}
	return nil
}

// Value evaluates the interpolation at x. Exact point hits return the stored
// value; outside the point range the extrapolation policy applies.
func (r *RationalFunctionInterpolation) Value(x float64) float64 {
	n := len(r.points)
	if n == 1 {
		return r.values[0]
	}
	if x <= r.points[0] {
		if x == r.points[0] || r.extrapolation == ExtrapolationConstant {
			return r.values[0]
		}
		return r.values[0] + r.derivative(0, 0.0)*(x-r.points[0])
	}
	if x >= r.points[n-1] {
		if x == r.points[n-1] || r.extrapolation == ExtrapolationConstant {
			return r.values[n-1]
		}
		last := n - 2
		return r.values[n-1] + r.derivative(last, r.points[n-1]-r.points[last])*(x-r.points[n-1])
	}

	i := sort.SearchFloat64s(r.points, x)
	if r.points[i] == x {
		return r.values[i]
	}
	i--
	return evalPoly(r.coefficients[i], x-r.points[i])
}

// derivative evaluates the derivative of the segment polynomial at local
// offset t.
func (r *RationalFunctionInterpolation) derivative(segment int, t float64) float64 {
	c := r.coefficients[segment]
	d := 0.0
	for k := len(c) - 1; k >= 1; k-- {
		d = d*t + float64(k)*c[k]
	}
	return d
}

func evalPoly(c []float64, t float64) float64 {
	v := 0.0
	for k := len(c) - 1; k >= 0; k-- {
		v = v*t + c[k]
	}
	return v
}
