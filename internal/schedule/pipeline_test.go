package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolcal/internal/model"
	"poolcal/internal/schedule"
)

func TestPipelineEndToEnd(t *testing.T) {
	p, err := schedule.New(schedule.Options{TimeZone: "Europe/Berlin"}, nil)
	require.NoError(t, err)

	wednesday := time.Date(2025, 1, 15, 10, 0, 0, 0, p.Location())
	res := p.Run(context.Background(), pool, []model.Block{
		{Text: "Öffnungszeiten täglich 06:00 – 21:00"},
		{Text: "Öffnungszeiten täglich 06:00 – 21:00"},
	}, wednesday)

	require.Len(t, res.Facts, 7)
	require.Len(t, res.Occurrences, 7)

	seen := map[string]bool{}
	for _, occ := range res.Occurrences {
		assert.Equal(t, "Öffentliches Schwimmen (P)", occ.Title)
		assert.True(t, occ.Begin.After(wednesday))
		assert.LessOrEqual(t, occ.Begin.Sub(wednesday), 7*24*time.Hour)
		assert.Equal(t, "06:00", occ.Begin.Format("15:04"))
		assert.Equal(t, "21:00", occ.End.Format("15:04"))
		assert.False(t, seen[occ.UID])
		seen[occ.UID] = true
	}
	// Wednesday's own occurrence is a week out.
	assert.Equal(t, 22, res.Occurrences[2].Begin.Day())
}

func TestPipelineOracleMode(t *testing.T) {
	l := &fakeLabeler{labels: []schedule.Label{{Name: "Frühschwimmen", Score: 0.91}}}
	p, err := schedule.New(schedule.Options{Mode: schedule.ModeOracle}, l)
	require.NoError(t, err)

	res := p.Run(context.Background(), pool, []model.Block{
		{Text: "Montag – Mittwoch 06:30 – 08:00"},
	}, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))

	require.Len(t, res.Facts, 3)
	assert.Equal(t, 1, l.calls)
	for _, f := range res.Facts {
		assert.Equal(t, "Frühschwimmen", f.Category)
		require.NotNil(t, f.Confidence)
		assert.InDelta(t, 0.91, *f.Confidence, 1e-9)
	}
	assert.Contains(t, res.Occurrences[0].Description, "Confidence: 0.91")
}

func TestPipelineOptionsValidation(t *testing.T) {
	_, err := schedule.New(schedule.Options{Mode: schedule.ModeOracle}, nil)
	assert.Error(t, err)

	_, err = schedule.New(schedule.Options{Mode: "magic"}, nil)
	assert.Error(t, err)

	_, err = schedule.New(schedule.Options{TimeZone: "Nowhere/Town"}, nil)
	assert.Error(t, err)
}
