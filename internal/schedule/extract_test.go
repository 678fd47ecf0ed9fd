package schedule_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolcal/internal/model"
	"poolcal/internal/schedule"
)

var pool = model.Facility{ID: "p", Name: "P"}

func extract(blocks ...model.Block) []model.ScheduleFact {
	e := schedule.NewExtractor(schedule.NewKeywordResolver(nil, ""))
	return e.Extract(context.Background(), pool, blocks)
}

func TestExtractDailyOpeningHours(t *testing.T) {
	facts := schedule.Dedupe(extract(model.Block{Text: "Öffnungszeiten täglich 06:00 – 21:00"}))
	require.Len(t, facts, 7)
	for i, f := range facts {
		assert.Equal(t, i, f.Weekday)
		assert.Equal(t, schedule.DefaultCategory, f.Category)
		assert.Equal(t, model.Clock{Hour: 6}, f.Start)
		assert.Equal(t, model.Clock{Hour: 21}, f.End)
		assert.Equal(t, "P", f.Pool)
		assert.True(t, f.IsDaily)
		assert.Nil(t, f.Confidence)
	}
}

func TestExtractMixedPage(t *testing.T) {
	early := model.Block{
		Heading: "Frühschwimmen",
		Text:    "Frühschwimmen\nMontag – Freitag\n06:30 – 08:00 Uhr",
	}
	blocks := []model.Block{
		{Text: "Öffnungszeiten\ntäglich 06:00 – 21:00"},
		early,
		{Text: "Lehrschwimmbecken\nSamstag: 12:00 – 15:00\nSonntag: 10:00 – 12:00 und 14:00 – 16:00"},
		{Text: "Sauna 10:00 – 22:00"},
		// Outer containers repeat their children's text.
		early,
	}

	raw := extract(blocks...)
	facts := schedule.Dedupe(raw)
	assert.Len(t, raw, 7+5+3+5)
	require.Len(t, facts, 7+5+3)

	// Daily statements come first.
	for _, f := range facts[:7] {
		assert.True(t, f.IsDaily)
		assert.Equal(t, schedule.DefaultCategory, f.Category)
	}

	byCategory := map[string][]model.ScheduleFact{}
	for _, f := range facts {
		assert.True(t, f.Start.Before(f.End))
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}

	var earlyDays []int
	for _, f := range byCategory["Frühschwimmen"] {
		earlyDays = append(earlyDays, f.Weekday)
		assert.Equal(t, model.Clock{Hour: 6, Minute: 30}, f.Start)
		assert.False(t, f.IsDaily)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, earlyDays)

	lehr := byCategory["Lehrschwimmbecken"]
	require.Len(t, lehr, 3)
	assert.Equal(t, 5, lehr[0].Weekday)
	assert.Equal(t, 6, lehr[1].Weekday)
	assert.Equal(t, model.Clock{Hour: 14}, lehr[2].Start)
}

func TestExtractDailyBlockAppliesEveryRangeToAllDays(t *testing.T) {
	facts := extract(model.Block{Text: "Öffnungszeiten täglich 10:00 – 20:00\nFrühschwimmen Montag – Freitag 06:30 – 08:00"})
	require.Len(t, facts, 14)
	for i, f := range facts {
		assert.Equal(t, i%7, f.Weekday)
		assert.True(t, f.IsDaily)
	}
	assert.Equal(t, model.Clock{Hour: 10}, facts[6].Start)
	assert.Equal(t, model.Clock{Hour: 6, Minute: 30}, facts[7].Start)
	assert.Equal(t, model.Clock{Hour: 8}, facts[13].End)
}

func TestExtractDropsUnattributedRanges(t *testing.T) {
	assert.Empty(t, extract(
		model.Block{Text: "Sauna 10:00 – 22:00"},
		model.Block{Heading: "Kurse", Text: "Aquafitness 18:00 – 19:00"},
		model.Block{Text: "Öffnungszeiten täglich, Zeiten folgen"},
	))
	assert.Empty(t, extract())
}

func TestExtractOpeningHoursLineWithoutDays(t *testing.T) {
	facts := extract(model.Block{Heading: "Sportbecken", Text: "Öffnungszeiten: 09:00 – 17:00"})
	require.Len(t, facts, 7)
	assert.Equal(t, "Sportbecken", facts[0].Category)
}

type onlyTableRows struct{ schedule.TableRow }

func TestExtractCustomStrategies(t *testing.T) {
	e := schedule.NewExtractor(nil, onlyTableRows{})
	facts := e.Extract(context.Background(), model.Facility{}, []model.Block{
		{Text: "Montag, Mittwoch 07:00 – 09:00"},
		{Text: "Dienstag\n07:00 – 09:00"},
	})
	require.Len(t, facts, 2)
	assert.Equal(t, 0, facts[0].Weekday)
	assert.Equal(t, 2, facts[1].Weekday)
	assert.Equal(t, "", facts[0].Pool)
	assert.Equal(t, schedule.DefaultCategory, facts[0].Title())
}
