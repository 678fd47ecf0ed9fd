package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

var icalWeekdays = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// transition is one UTC offset change of a zone.
type transition struct {
	at         time.Time
	fromOffset int
	toOffset   int
	toName     string
}

// timezoneComponent builds a VTIMEZONE for an IANA zone from the Go zone
// database. Offset changes found in year become yearly observances keyed by
// month and n-th (or last) weekday, which covers the EU and US rules.
func timezoneComponent(tz string, year int) (*ical.VTimezone, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("ics: timezone %q: %w", tz, err)
	}

	vtz := &ical.VTimezone{}
	vtz.SetProperty(ical.ComponentProperty("TZID"), tz)

	transitions := zoneTransitions(loc, year)
	if len(transitions) == 0 {
		name, off := time.Date(year, time.January, 1, 0, 0, 0, 0, loc).Zone()
		std := &ical.Standard{}
		setObservance(&std.ComponentBase, "19700101T000000", off, off, name, "")
		vtz.Components = append(vtz.Components, std)
		return vtz, nil
	}

	for _, tr := range transitions {
		onset := tr.at.UTC().Add(time.Duration(tr.fromOffset) * time.Second)
		rule := fmt.Sprintf("FREQ=YEARLY;BYMONTH=%d;BYDAY=%s", int(onset.Month()), nthWeekday(onset))
		if tr.toOffset > tr.fromOffset {
			dl := &ical.Daylight{}
			setObservance(&dl.ComponentBase, onset.Format(localLayout), tr.fromOffset, tr.toOffset, tr.toName, rule)
			vtz.Components = append(vtz.Components, dl)
		} else {
			std := &ical.Standard{}
			setObservance(&std.ComponentBase, onset.Format(localLayout), tr.fromOffset, tr.toOffset, tr.toName, rule)
			vtz.Components = append(vtz.Components, std)
		}
	}
	return vtz, nil
}

func setObservance(c *ical.ComponentBase, dtstart string, from, to int, name, rule string) {
	c.SetProperty(ical.ComponentPropertyDtStart, dtstart)
	c.SetProperty(ical.ComponentProperty("TZOFFSETFROM"), formatOffset(from))
	c.SetProperty(ical.ComponentProperty("TZOFFSETTO"), formatOffset(to))
	if name != "" {
		c.SetProperty(ical.ComponentProperty("TZNAME"), name)
	}
	if rule != "" {
		c.SetProperty(ical.ComponentPropertyRrule, rule)
	}
}

// zoneTransitions scans year hour by hour. Zones with offset changes off
// the full hour are reported at the following hour.
func zoneTransitions(loc *time.Location, year int) []transition {
	var out []transition
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := t.AddDate(1, 0, 0)
	_, prev := t.In(loc).Zone()
	for t = t.Add(time.Hour); t.Before(end); t = t.Add(time.Hour) {
		name, off := t.In(loc).Zone()
		if off != prev {
			out = append(out, transition{at: t, fromOffset: prev, toOffset: off, toName: name})
			prev = off
		}
	}
	return out
}

// nthWeekday renders the BYDAY value for d: "-1SU" for the last such
// weekday of the month, else "2SU" style.
func nthWeekday(d time.Time) string {
	wd := icalWeekdays[d.Weekday()]
	daysInMonth := time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if d.Day()+7 > daysInMonth {
		return "-1" + wd
	}
	return fmt.Sprintf("%d%s", (d.Day()-1)/7+1, wd)
}

func formatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d%02d", sign, seconds/3600, seconds%3600/60)
}
