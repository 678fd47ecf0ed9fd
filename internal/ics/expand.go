package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "poolcal/internal/log"
	"poolcal/internal/model"
)

const defaultMaxInstancesPerEvent = 500

// Instance is one concrete session of a recurring occurrence.
type Instance struct {
	UID      string    `json:"uid"`
	Title    string    `json:"title"`
	Location string    `json:"location,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone instances are converted into; nil means
	// time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd is the inclusive window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxInstancesPerEvent caps the expansion of a single rule.
	MaxInstancesPerEvent int
}

// ExpandResult holds instances sorted by start and the UIDs that hit the cap.
type ExpandResult struct {
	Instances       []Instance
	TruncatedEvents []string
}

// Expand materialises occurrences into instances within the window. Rules
// are evaluated in the occurrence's own zone so the wall-clock time stays
// fixed across DST transitions.
func Expand(occurrences []model.CalendarOccurrence, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxInstancesPerEvent <= 0 {
		cfg.MaxInstancesPerEvent = defaultMaxInstancesPerEvent
	}

	result.Instances = make([]Instance, 0)
	for _, occ := range occurrences {
		inst, hitCap := expandOccurrence(occ, cfg)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, occ.UID)
			appLog.Warn("expand: truncated instances", "uid", occ.UID, "cap", cfg.MaxInstancesPerEvent)
		}
		result.Instances = append(result.Instances, inst...)
	}

	sort.SliceStable(result.Instances, func(i, j int) bool {
		return result.Instances[i].Start.Before(result.Instances[j].Start)
	})
	return result, nil
}

func expandOccurrence(occ model.CalendarOccurrence, cfg ExpandConfig) ([]Instance, bool) {
	dur := occ.End.Sub(occ.Begin)

	if occ.Recurrence == "" {
		if occ.End.Before(cfg.RangeStart) || cfg.RangeEnd.Before(occ.Begin) {
			return nil, false
		}
		return []Instance{makeInstance(occ, occ.Begin, dur, cfg.DisplayLocation)}, false
	}

	opt, err := rrule.StrToROption(occ.Recurrence)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", occ.UID, "rrule", occ.Recurrence)
		return nil, false
	}
	opt.Dtstart = occ.Begin
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("expand: invalid RRULE", err, "uid", occ.UID, "rrule", occ.Recurrence)
		return nil, false
	}

	var set rrule.Set
	set.RRule(r)

	loc := occ.Begin.Location()
	starts := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxInstancesPerEvent {
		starts = starts[:cfg.MaxInstancesPerEvent]
		hitCap = true
	}

	out := make([]Instance, 0, len(starts))
	for _, s := range starts {
		out = append(out, makeInstance(occ, s, dur, cfg.DisplayLocation))
	}
	return out, hitCap
}

func makeInstance(occ model.CalendarOccurrence, start time.Time, dur time.Duration, loc *time.Location) Instance {
	return Instance{
		UID:      occ.UID,
		Title:    occ.Title,
		Location: occ.Location,
		Start:    start.In(loc),
		End:      start.Add(dur).In(loc),
	}
}
