package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "poolcal/internal/log"
	"poolcal/internal/model"
)

// DefaultTimeZone is the civil timezone of the Dresden pools.
const DefaultTimeZone = "Europe/Berlin"

var rruleWeekdays = [7]rrule.Weekday{
	rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU,
}

// Synthesizer turns facts into weekly calendar occurrences in one facility
// timezone.
type Synthesizer struct {
	loc *time.Location
}

func NewSynthesizer(tz string) (*Synthesizer, error) {
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule: load timezone %q: %w", tz, err)
	}
	return &Synthesizer{loc: loc}, nil
}

func (s *Synthesizer) Location() *time.Location { return s.loc }

// NextWeekday returns midnight of the first day strictly after today whose
// ordinal (Monday=0) is weekday. A same-day match moves a full week ahead.
func NextWeekday(today time.Time, weekday int) time.Time {
	current := (int(today.Weekday()) + 6) % 7
	ahead := (weekday - current + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return time.Date(today.Year(), today.Month(), today.Day()+ahead, 0, 0, 0, 0, today.Location())
}

// Synthesize computes the next occurrence of f after today. Begin and End
// are built from the civil date and clock in the facility timezone, so a
// DST change between today and the occurrence does not shift them.
func (s *Synthesizer) Synthesize(f model.ScheduleFact, today time.Time) (model.CalendarOccurrence, error) {
	if f.Weekday < 0 || f.Weekday > 6 {
		return model.CalendarOccurrence{}, fmt.Errorf("%w: ordinal %d", ErrUnrecognizedWeekday, f.Weekday)
	}
	if !f.Start.Valid() || !f.End.Valid() || !f.Start.Before(f.End) {
		return model.CalendarOccurrence{}, fmt.Errorf("%w: %s–%s", ErrMalformedTimeRange, f.Start, f.End)
	}

	day := NextWeekday(today.In(s.loc), f.Weekday)
	begin := time.Date(day.Year(), day.Month(), day.Day(), f.Start.Hour, f.Start.Minute, 0, 0, s.loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), f.End.Hour, f.End.Minute, 0, 0, s.loc)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rruleWeekdays[f.Weekday]},
		Dtstart:   begin,
	})
	if err != nil {
		return model.CalendarOccurrence{}, fmt.Errorf("schedule: build rrule: %w", err)
	}

	return model.CalendarOccurrence{
		UID:         occurrenceUID(f),
		Title:       f.Title(),
		Description: describe(f),
		Location:    f.Pool,
		Begin:       begin,
		End:         end,
		TimeZone:    s.loc.String(),
		Recurrence:  rule.OrigOptions.RRuleString(),
	}, nil
}

// SynthesizeAll maps a deduplicated fact list, skipping facts that cannot
// be materialized.
func (s *Synthesizer) SynthesizeAll(facts []model.ScheduleFact, today time.Time) []model.CalendarOccurrence {
	out := make([]model.CalendarOccurrence, 0, len(facts))
	var errs []error
	for _, f := range facts {
		occ, err := s.Synthesize(f, today)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, occ)
	}
	if len(errs) > 0 {
		appLog.Error("some facts could not be synthesized", errors.Join(errs...), "skipped", len(errs))
	}
	return out
}

func describe(f model.ScheduleFact) string {
	var b strings.Builder
	b.WriteString(f.Title())
	b.WriteString(" on ")
	b.WriteString(WeekdayName(f.Weekday))
	if f.Pool != "" {
		b.WriteString(" at ")
		b.WriteString(f.Pool)
	}
	b.WriteString("\nSchedule: ")
	if f.IsDaily {
		b.WriteString("daily")
	} else {
		b.WriteString("weekly")
	}
	if f.Confidence != nil {
		fmt.Fprintf(&b, "\nConfidence: %.2f", *f.Confidence)
	}
	return b.String()
}

// occurrenceUID is stable across runs for the same fact key.
func occurrenceUID(f model.ScheduleFact) string {
	k := f.Key()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%s|%s", k.Category, k.Weekday, k.Start, k.End, k.Pool)))
	return hex.EncodeToString(sum[:8]) + "@poolcal"
}
