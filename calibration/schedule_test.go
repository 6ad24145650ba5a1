package calibration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banachtech/tenor/timegrid"
)

func TestRegularSchedule(t *testing.T) {
	schedule := NewRegularSchedule(timegrid.New(0.5, 1.0, 1.5, 2.25))

	require.Equal(t, 3, schedule.NumberOfPeriods())
	require.Equal(t, 0.5, schedule.Fixing(0))
	require.Equal(t, 1.0, schedule.Payment(0))
	require.Equal(t, 1.5, schedule.Fixing(2))
	require.Equal(t, 2.25, schedule.Payment(2))
	require.InDelta(t, 0.5, schedule.PeriodLength(1), 1e-15)
	require.InDelta(t, 0.75, schedule.PeriodLength(2), 1e-15)
}
