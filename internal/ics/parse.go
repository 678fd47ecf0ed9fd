package ics

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "poolcal/internal/log"
	"poolcal/internal/model"
)

// ReadFile loads a calendar previously written by FileSink.
func ReadFile(path string) ([]model.CalendarOccurrence, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ics: read %s: %w", path, err)
	}
	return Parse(body)
}

// Parse turns an iCalendar payload back into occurrences. Events that
// cannot be interpreted are logged and skipped.
func Parse(body []byte) ([]model.CalendarOccurrence, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	out := make([]model.CalendarOccurrence, 0)
	for _, ve := range cal.Events() {
		occ, err := parseVEvent(ve)
		if err != nil {
			appLog.Warn("ics vevent skipped", "err", err)
			continue
		}
		out = append(out, occ)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (model.CalendarOccurrence, error) {
	var out model.CalendarOccurrence

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = unescapeText(p.Value)
	}

	begin, tz, err := localTime(ve.GetProperty(ical.ComponentPropertyDtStart))
	if err != nil {
		return out, fmt.Errorf("%s: DTSTART: %w", out.UID, err)
	}
	end, _, err := localTime(ve.GetProperty(ical.ComponentPropertyDtEnd))
	if err != nil {
		return out, fmt.Errorf("%s: DTEND: %w", out.UID, err)
	}
	out.Begin, out.End, out.TimeZone = begin, end, tz

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.Recurrence = p.Value
	}
	return out, nil
}

// localTime interprets a DATE-TIME property, honouring its TZID parameter.
func localTime(p *ical.IANAProperty) (time.Time, string, error) {
	if p == nil || p.Value == "" {
		return time.Time{}, "", errors.New("missing")
	}
	v := strings.TrimSpace(p.Value)
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(localLayout+"Z", v)
		return t, "", err
	}

	tz := ""
	if vs, ok := p.ICalParameters[string(ical.ParameterTzid)]; ok && len(vs) > 0 {
		tz = vs[0]
	}
	loc := time.Local
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, "", err
		}
		loc = l
	}
	t, err := time.ParseInLocation(localLayout, v, loc)
	return t, tz, err
}

// unescapeText undoes RFC 5545 TEXT escaping left in place by the parser.
func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`).Replace(s)
}
