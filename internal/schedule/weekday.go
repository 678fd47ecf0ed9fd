package schedule

import "fmt"

// AllDays is returned by LookupWeekday for the daily sentinel.
const AllDays = -1

// DailySentinel is the source-language word for "every day".
const DailySentinel = "täglich"

var weekdayNames = [7]string{
	"Montag",
	"Dienstag",
	"Mittwoch",
	"Donnerstag",
	"Freitag",
	"Samstag",
	"Sonntag",
}

var weekdayOrdinals = func() map[string]int {
	m := make(map[string]int, len(weekdayNames)+1)
	for i, n := range weekdayNames {
		m[n] = i
	}
	m[DailySentinel] = AllDays
	return m
}()

// LookupWeekday maps a German weekday name to 0 (Monday) .. 6 (Sunday), or
// AllDays for "täglich". The match is exact, including case and umlauts.
func LookupWeekday(name string) (int, error) {
	if d, ok := weekdayOrdinals[name]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedWeekday, name)
}

// WeekdayName returns the German name for an ordinal, or "" when out of range.
func WeekdayName(d int) string {
	if d < 0 || d >= len(weekdayNames) {
		return ""
	}
	return weekdayNames[d]
}

func allWeekdays() []int {
	return []int{0, 1, 2, 3, 4, 5, 6}
}
