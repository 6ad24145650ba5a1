package calibration

import "github.com/banachtech/tenor/timegrid"

// Schedule describes the period structure of a leg: fixing time, payment
// time and length per period. Date and calendar conventions live outside
// this package, anything satisfying the contract can be passed in.
type Schedule interface {
	NumberOfPeriods() int
	Fixing(period int) float64
	Payment(period int) float64
	PeriodLength(period int) float64
}

// RegularSchedule is the schedule induced by a time discretization: period
// i runs from time i to time i+1, fixing at the start and paying at the
// end.
type RegularSchedule struct {
	tenor *timegrid.TimeDiscretization
}

func NewRegularSchedule(tenor *timegrid.TimeDiscretization) *RegularSchedule {
	return &RegularSchedule{tenor: tenor}
}

func (s *RegularSchedule) NumberOfPeriods() int { return s.tenor.NumberOfTimeSteps() }

func (s *RegularSchedule) Fixing(period int) float64 { return s.tenor.Time(period) }

func (s *RegularSchedule) Payment(period int) float64 { return s.tenor.Time(period + 1) }

func (s *RegularSchedule) PeriodLength(period int) float64 { return s.tenor.TimeStep(period) }
