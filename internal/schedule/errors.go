package schedule

import "errors"

// None of these abort a run. They mark a text unit that was skipped.
var (
	ErrUnrecognizedWeekday = errors.New("schedule: unrecognized weekday")
	ErrNoWeekdayFound      = errors.New("schedule: no weekday found")
	ErrMalformedTimeRange  = errors.New("schedule: malformed time range")
	ErrCategoryResolution  = errors.New("schedule: category resolution failed")
	ErrInvalidWeekdaySpan  = errors.New("schedule: invalid weekday span")
)
