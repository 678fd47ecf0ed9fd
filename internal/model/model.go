package model

import (
	"fmt"
	"time"
)

// Clock is a wall-clock time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) Before(o Clock) bool { return c.Minutes() < o.Minutes() }

func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// MarshalText renders the clock as "HH:MM" for JSON/YAML output.
func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// TimeRange is a same-day span; Start is always before End.
type TimeRange struct {
	Start Clock
	End   Clock
}

func (r TimeRange) String() string { return r.Start.String() + "–" + r.End.String() }

// Facility identifies one pool whose page is scraped.
type Facility struct {
	ID   string
	Name string
	URL  string
}

// Block is one text block taken from a schedule page. Heading is the first
// h2/h3/h4 inside the block, if any; Text holds the block's visible lines
// separated by '\n'.
type Block struct {
	Heading string
	Text    string
}

// ScheduleFact is one extracted (category, weekday, time range, pool) tuple.
// Facts are never mutated after extraction.
type ScheduleFact struct {
	Category string `json:"category"`
	// Weekday is 0 for Monday through 6 for Sunday.
	Weekday int   `json:"weekday"`
	Start   Clock `json:"start"`
	End     Clock `json:"end"`
	// Pool is empty in single-pool mode.
	Pool    string `json:"pool,omitempty"`
	IsDaily bool   `json:"is_daily"`
	// Confidence is set only when a probabilistic labeler chose Category.
	Confidence *float64 `json:"confidence,omitempty"`
}

// FactKey is the identity used for deduplication.
type FactKey struct {
	Category string
	Weekday  int
	Start    Clock
	End      Clock
	Pool     string
}

func (f ScheduleFact) Key() FactKey {
	return FactKey{
		Category: f.Category,
		Weekday:  f.Weekday,
		Start:    f.Start,
		End:      f.End,
		Pool:     f.Pool,
	}
}

// Title is "{category} ({pool})", or just the category without a pool.
func (f ScheduleFact) Title() string {
	if f.Pool == "" {
		return f.Category
	}
	return f.Category + " (" + f.Pool + ")"
}

// CalendarOccurrence is one concrete weekly-recurring event handed to a sink.
type CalendarOccurrence struct {
	UID         string    `json:"uid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Begin       time.Time `json:"begin"`
	End         time.Time `json:"end"`
	// TimeZone is the IANA name Begin/End are expressed in.
	TimeZone string `json:"timezone"`
	// Recurrence is an RRULE value such as "FREQ=WEEKLY;BYDAY=MO".
	Recurrence string `json:"recurrence"`
}
