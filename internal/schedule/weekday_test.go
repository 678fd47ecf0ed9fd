package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolcal/internal/schedule"
)

func TestLookupWeekday(t *testing.T) {
	d, err := schedule.LookupWeekday("Montag")
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	d, err = schedule.LookupWeekday("Sonntag")
	require.NoError(t, err)
	assert.Equal(t, 6, d)

	d, err = schedule.LookupWeekday("täglich")
	require.NoError(t, err)
	assert.Equal(t, schedule.AllDays, d)
}

func TestLookupWeekdayIsExact(t *testing.T) {
	for _, name := range []string{"montag", "MONTAG", "Taglich", "Mo", "Monday", ""} {
		_, err := schedule.LookupWeekday(name)
		assert.ErrorIs(t, err, schedule.ErrUnrecognizedWeekday, name)
	}
}

func TestWeekdayName(t *testing.T) {
	assert.Equal(t, "Mittwoch", schedule.WeekdayName(2))
	assert.Equal(t, "", schedule.WeekdayName(7))
}
