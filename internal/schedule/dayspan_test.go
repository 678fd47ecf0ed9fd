package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolcal/internal/schedule"
)

func TestExpandDays(t *testing.T) {
	cases := map[string][]int{
		"Montag – Freitag":                  {0, 1, 2, 3, 4},
		"Montag, Mittwoch":                  {0, 2},
		"täglich":                           {0, 1, 2, 3, 4, 5, 6},
		"Täglich 10:00 – 20:00":             {0, 1, 2, 3, 4, 5, 6},
		"Samstag":                           {5},
		"Samstag und Sonntag":               {5, 6},
		"Dienstag-Donnerstag, Samstag":      {1, 2, 3, 5},
		"Mo – Fr":                           {0, 1, 2, 3, 4},
		"Mo. bis Fr.":                       {0, 1, 2, 3, 4},
		"sonntags: Sonntags 9:00 – 12:00":   {6},
		"Montag (außer Mittwoch) – Freitag": {0, 1, 2, 3, 4},
		"Öffnungszeiten 10:00 – 20:00":      {0, 1, 2, 3, 4, 5, 6},
		"Freitag, Montag":                   {0, 4},
	}
	for in, want := range cases {
		got, err := schedule.ExpandDays(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestExpandDaysNoDay(t *testing.T) {
	for _, in := range []string{"", "10:00 – 12:00", "So lange der Vorrat reicht", "Dominik"} {
		_, err := schedule.ExpandDays(in)
		assert.ErrorIs(t, err, schedule.ErrNoWeekdayFound, in)
	}
}

func TestExpandDaysWrapAroundIsUnsupported(t *testing.T) {
	_, err := schedule.ExpandDays("Samstag – Montag")
	assert.ErrorIs(t, err, schedule.ErrInvalidWeekdaySpan)

	// Other tokens in the descriptor still count.
	got, err := schedule.ExpandDays("Samstag – Montag, Mittwoch")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got)
}

func TestExpandDaysParenthesesOnly(t *testing.T) {
	got, err := schedule.ExpandDays("Frühschwimmen (Montag – Freitag)")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}
