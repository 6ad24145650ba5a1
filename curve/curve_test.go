package curve

import (
	"fmt"
	"sync"
	"testing"

	"github.com/banachtech/tenor/interp"
	"github.com/stretchr/testify/require"
)

type testModel map[string]Interface

func (m testModel) Curve(name string) (Interface, error) {
	c, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no curve %q", name)
	}
	return c, nil
}

func TestParameterRoundTrip(t *testing.T) {
	testCases := []struct {
		name   string
		entity Entity
	}{
		{"value", EntityValue},
		{"log of value", EntityLogOfValue},
		{"log of value per time", EntityLogOfValuePerTime},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := New("test", interp.MethodLinear, interp.ExtrapolationConstant, tc.entity)
			times := []float64{0.5, 1.0, 2.0}
			values := []float64{0.98, 0.95, 0.9}
			for i := range times {
				require.NoError(t, c.AddPoint(times[i], values[i]))
			}
			parameter := c.Parameter()
			require.Len(t, parameter, len(values))
			for i := range values {
				require.InDelta(t, values[i], parameter[i], 1e-14)
			}
			for i := range times {
				v, err := c.Value(times[i])
				require.NoError(t, err)
				require.InDelta(t, values[i], v, 1e-14)
			}
		})
	}
}

func TestAddPointDuplicate(t *testing.T) {
	c := New("test", interp.MethodLinear, interp.ExtrapolationConstant, EntityValue)
	require.NoError(t, c.AddPoint(1.0, 0.5))

	// same time, same value is a no-op
	require.NoError(t, c.AddPoint(1.0, 0.5))
	require.Len(t, c.Points(), 1)

	// same time, different value conflicts
	err := c.AddPoint(1.0, 0.6)
	require.ErrorIs(t, err, ErrPointConflict)
}

func TestAddPointKeepsOrder(t *testing.T) {
	c := New("test", interp.MethodLinear, interp.ExtrapolationConstant, EntityValue)
	for _, p := range []struct{ t, v float64 }{{2.0, 2.0}, {0.5, 0.5}, {1.0, 1.0}} {
		require.NoError(t, c.AddPoint(p.t, p.v))
	}
	points := c.Points()
	require.Equal(t, []float64{0.5, 1.0, 2.0}, []float64{points[0].Time, points[1].Time, points[2].Time})
}

func TestLogEntityRejectsNonPositive(t *testing.T) {
	c := New("test", interp.MethodLinear, interp.ExtrapolationConstant, EntityLogOfValue)
	require.Error(t, c.AddPoint(1.0, 0.0))
	require.Error(t, c.AddPoint(1.0, -0.5))
}

func TestLogOfValuePerTimeAtTimeZero(t *testing.T) {
	c := New("test", interp.MethodLinear, interp.ExtrapolationConstant, EntityLogOfValuePerTime)
	require.ErrorIs(t, c.AddPoint(0.0, 0.9), ErrZeroTime)

	// evaluation at t=0 is defined through exp(x*0) = 1
	require.NoError(t, c.AddPoint(1.0, 0.95))
	v, err := c.Value(0.0)
	require.NoError(t, err)
	require.InDelta(t, 1.0, v, 1e-14)
}

func TestEmptyCurveValueFails(t *testing.T) {
	c := New("empty", interp.MethodLinear, interp.ExtrapolationConstant, EntityValue)
	_, err := c.Value(1.0)
	require.ErrorIs(t, err, interp.ErrInsufficientPoints)
}

func TestSetParameter(t *testing.T) {
	c := New("test", interp.MethodLinear, interp.ExtrapolationConstant, EntityLogOfValue)
	require.NoError(t, c.AddPoint(1.0, 0.95))
	require.NoError(t, c.AddPoint(2.0, 0.9))

	require.Error(t, c.SetParameter([]float64{0.9}))

	require.NoError(t, c.SetParameter([]float64{0.97, 0.93}))
	v, err := c.Value(2.0)
	require.NoError(t, err)
	require.InDelta(t, 0.93, v, 1e-14)
}

func TestWithParameterIsolation(t *testing.T) {
	c := New("test", interp.MethodLinear, interp.ExtrapolationConstant, EntityValue)
	require.NoError(t, c.AddPoint(1.0, 1.0))
	require.NoError(t, c.AddPoint(2.0, 2.0))

	clone, err := c.WithParameter([]float64{10.0, 20.0})
	require.NoError(t, err)

	v, err := clone.Value(2.0)
	require.NoError(t, err)
	require.InDelta(t, 20.0, v, 1e-14)

	// original unchanged
	v, err = c.Value(2.0)
	require.NoError(t, err)
	require.InDelta(t, 2.0, v, 1e-14)

	// mutating the clone does not leak into the original
	require.NoError(t, clone.SetParameter([]float64{100.0, 200.0}))
	v, err = c.Value(1.0)
	require.NoError(t, err)
	require.InDelta(t, 1.0, v, 1e-14)
}

func TestConcurrentReads(t *testing.T) {
	c := New("test", interp.MethodCubicSpline, interp.ExtrapolationConstant, EntityLogOfValue)
	for i := 1; i <= 10; i++ {
		require.NoError(t, c.AddPoint(float64(i), 1.0/float64(i)))
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := c.Value(0.5 + float64(i%10)); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSeasonalCurve(t *testing.T) {
	base, err := NewFromValues("season base", interp.MethodLinear, interp.ExtrapolationConstant, EntityValue,
		[]float64{0.0, 0.5, 1.0}, []float64{1.0, 1.2, 1.0})
	require.NoError(t, err)

	c := NewSeasonalCurve("season", base)
	v1, err := c.Value(0.25)
	require.NoError(t, err)
	v2, err := c.Value(3.25)
	require.NoError(t, err)
	require.InDelta(t, v1, v2, 1e-14)
	require.InDelta(t, 1.1, v1, 1e-14)
}
