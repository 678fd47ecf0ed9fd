package ics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "poolcal/internal/log"
	"poolcal/internal/model"
)

const (
	productID = "-//poolcal//pool schedules//DE"
	// localLayout is the floating DATE-TIME form used together with TZID.
	localLayout = "20060102T150405"
)

// Sink receives the occurrences synthesized for one destination, typically
// one facility.
type Sink interface {
	Write(ctx context.Context, dest string, occurrences []model.CalendarOccurrence) error
}

// FileSink writes one schedule_<dest>.ics file per destination into Dir.
type FileSink struct {
	Dir string
	// Now stamps DTSTAMP; nil means time.Now.
	Now func() time.Time
}

var _ Sink = (*FileSink)(nil)

// FileName returns the calendar file name for a destination id.
func FileName(dest string) string { return "schedule_" + dest + ".ics" }

// Path returns the full path of the calendar file for dest.
func (s *FileSink) Path(dest string) string { return filepath.Join(s.Dir, FileName(dest)) }

// Write replaces the destination's calendar atomically. An empty occurrence
// list still produces a valid, empty calendar.
func (s *FileSink) Write(ctx context.Context, dest string, occurrences []model.CalendarOccurrence) error {
	if dest == "" {
		return errors.New("ics: empty destination")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	body, err := Encode(dest, occurrences, now())
	if err != nil {
		return fmt.Errorf("ics: encode %s: %w", dest, err)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("ics: mkdir %s: %w", s.Dir, err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".poolcal-*.ics.tmp")
	if err != nil {
		return fmt.Errorf("ics: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("ics: write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ics: close %s: %w", dest, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	path := s.Path(dest)
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("ics: rename %s: %w", path, err)
	}

	appLog.Info("calendar written", "dest", dest, "path", path, "events", len(occurrences))
	return nil
}

// Encode renders occurrences as an iCalendar document. Begin/End are
// written as local times with a TZID parameter so that the recurrence keeps
// its wall-clock time across DST changes. Every referenced TZID gets a
// VTIMEZONE.
func Encode(name string, occurrences []model.CalendarOccurrence, stamp time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(calendarName(name, occurrences))

	var zones []string
	for _, occ := range occurrences {
		if occ.UID == "" {
			return nil, errors.New("occurrence without UID")
		}
		if !occ.Begin.Before(occ.End) {
			return nil, fmt.Errorf("occurrence %s: begin %s not before end %s", occ.UID, occ.Begin, occ.End)
		}
		if occ.TimeZone != "" && !slices.Contains(zones, occ.TimeZone) {
			zones = append(zones, occ.TimeZone)
		}
	}

	for _, tz := range zones {
		vtz, err := timezoneComponent(tz, firstBegin(occurrences, tz).Year())
		if err != nil {
			return nil, err
		}
		cal.Components = append(cal.Components, vtz)
	}
	if len(zones) > 0 {
		cal.SetXWRTimezone(zones[0])
	}

	for _, occ := range occurrences {
		ev := cal.AddEvent(occ.UID)
		ev.SetDtStampTime(stamp.UTC())
		ev.SetSummary(occ.Title)
		if occ.Description != "" {
			ev.SetDescription(occ.Description)
		}
		if occ.Location != "" {
			ev.SetLocation(occ.Location)
		}
		setLocalTime(ev, ical.ComponentPropertyDtStart, occ.Begin, occ.TimeZone)
		setLocalTime(ev, ical.ComponentPropertyDtEnd, occ.End, occ.TimeZone)
		if occ.Recurrence != "" {
			ev.AddRrule(occ.Recurrence)
		}
	}

	return []byte(cal.Serialize()), nil
}

func setLocalTime(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time, tz string) {
	if tz == "" {
		ev.SetProperty(prop, t.UTC().Format(localLayout+"Z"))
		return
	}
	ev.SetProperty(prop, t.Format(localLayout), &ical.KeyValues{
		Key:   string(ical.ParameterTzid),
		Value: []string{tz},
	})
}

func firstBegin(occurrences []model.CalendarOccurrence, tz string) time.Time {
	for _, occ := range occurrences {
		if occ.TimeZone == tz {
			return occ.Begin
		}
	}
	return time.Time{}
}

func calendarName(dest string, occurrences []model.CalendarOccurrence) string {
	for _, occ := range occurrences {
		if occ.Location != "" {
			return occ.Location
		}
	}
	return dest
}
