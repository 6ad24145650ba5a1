package timegrid

import (
	"math"
	"sort"
)

// tickSize is the resolution of the discretization. Times closer than one
// tick collapse to a single point.
const tickSize = 1.0 / (365.0 * 24.0)

// TimeDiscretization is an ordered set of distinct times. Instances are
// immutable after construction and safe for concurrent use.
type TimeDiscretization struct {
	times []float64
}

// New builds a discretization from the given times. Times are sorted and
// duplicates within the tick size collapse to a single point.
func New(times ...float64) *TimeDiscretization {
	sorted := make([]float64, len(times))
	copy(sorted, times)
	sort.Float64s(sorted)
	kept := sorted[:0]
	for _, t := range sorted {
		if len(kept) == 0 || t-kept[len(kept)-1] >= tickSize {
			kept = append(kept, t)
		}
	}
	return &TimeDiscretization{times: kept}
}

// NewEquidistant builds initial, initial+deltaT, ..., initial+numberOfTimeSteps*deltaT.
func NewEquidistant(initial float64, numberOfTimeSteps int, deltaT float64) *TimeDiscretization {
	times := make([]float64, numberOfTimeSteps+1)
	for i := range times {
		times[i] = initial + float64(i)*deltaT
	}
	return &TimeDiscretization{times: times}
}

func (td *TimeDiscretization) NumberOfTimes() int     { return len(td.times) }
func (td *TimeDiscretization) NumberOfTimeSteps() int { return len(td.times) - 1 }

// Time returns the time at the given index.
func (td *TimeDiscretization) Time(timeIndex int) float64 { return td.times[timeIndex] }

// TimeStep returns the step length between timeIndex and timeIndex+1.
func (td *TimeDiscretization) TimeStep(timeIndex int) float64 {
	return td.times[timeIndex+1] - td.times[timeIndex]
}

// TimeIndex returns the index of the given time if the discretization
// contains it within one tick.
func (td *TimeDiscretization) TimeIndex(time float64) (int, bool) {
	i := sort.SearchFloat64s(td.times, time-tickSize/2)
	if i < len(td.times) && math.Abs(td.times[i]-time) < tickSize {
		return i, true
	}
	return 0, false
}

// TimeIndexNearestLessOrEqual returns the index of the largest time not
// after the given time. Times before the first point map to index 0.
func (td *TimeDiscretization) TimeIndexNearestLessOrEqual(time float64) int {
	i := sort.SearchFloat64s(td.times, time+tickSize/2)
	if i > 0 {
		i--
	}
	return i
}

// Times returns a copy of the times.
func (td *TimeDiscretization) Times() []float64 {
	out := make([]float64, len(td.times))
	copy(out, td.times)
	return out
}

// Union merges two discretizations into a new one.
func (td *TimeDiscretization) Union(other *TimeDiscretization) *TimeDiscretization {
	return New(append(td.Times(), other.times...)...)
}
