package schedule

import (
	"fmt"
	"iter"
	"regexp"
	"strconv"

	"poolcal/internal/model"
)

// timeRangePattern matches "6:30 – 8:00", "06.30-08.00", "06:00 Uhr - 21:00 Uhr".
var timeRangePattern = regexp.MustCompile(
	`(\d{1,2})[:.](\d{2})(?:\s*Uhr)?\s*[–-]\s*(\d{1,2})[:.](\d{2})(?:\s*Uhr)?`,
)

// TimeRanges lazily yields every well-formed time range in text, left to
// right. The sequence rescans text each time it is ranged over.
func TimeRanges(text string) iter.Seq[model.TimeRange] {
	return func(yield func(model.TimeRange) bool) {
		scanTimeRanges(text, yield, nil)
	}
}

// ScanTimeRanges collects the well-formed ranges and the matched substrings
// that were rejected as malformed.
func ScanTimeRanges(text string) (ranges []model.TimeRange, rejected []string) {
	scanTimeRanges(text,
		func(r model.TimeRange) bool {
			ranges = append(ranges, r)
			return true
		},
		func(s string, _ error) {
			rejected = append(rejected, s)
		},
	)
	return ranges, rejected
}

func scanTimeRanges(text string, yield func(model.TimeRange) bool, reject func(string, error)) {
	pos := 0
	for pos < len(text) {
		loc := timeRangePattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			return
		}
		start, end := pos+loc[0], pos+loc[1]

		// A digit or dotted date glued to either side means the match is
		// part of something else; retry one byte later.
		if gluedBefore(text, start) || gluedAfter(text, end) {
			pos = start + 1
			continue
		}

		// Resume right after the first clock so that chained ranges such as
		// "06:00 – 08:00 – 10:00" report 08:00 – 10:00 as well.
		next := pos + loc[5]
		r, err := parseTimeRange(text, pos, loc)
		if err != nil {
			if reject != nil {
				reject(text[start:end], err)
			}
			pos = next
			continue
		}
		if !yield(r) {
			return
		}
		pos = next
	}
}

func parseTimeRange(text string, base int, loc []int) (model.TimeRange, error) {
	group := func(i int) int {
		n, _ := strconv.Atoi(text[base+loc[2*i] : base+loc[2*i+1]])
		return n
	}
	r := model.TimeRange{
		Start: model.Clock{Hour: group(1), Minute: group(2)},
		End:   model.Clock{Hour: group(3), Minute: group(4)},
	}
	if !r.Start.Valid() || !r.End.Valid() {
		return r, fmt.Errorf("%w: clock out of range in %q", ErrMalformedTimeRange, text[base+loc[0]:base+loc[1]])
	}
	if !r.Start.Before(r.End) {
		return r, fmt.Errorf("%w: %s does not end after it starts", ErrMalformedTimeRange, r)
	}
	return r, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func gluedBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	p := text[i-1]
	if isDigit(p) {
		return true
	}
	return (p == '.' || p == ':') && i >= 2 && isDigit(text[i-2])
}

func gluedAfter(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	n := text[i]
	if isDigit(n) {
		return true
	}
	return (n == '.' || n == ':') && i+1 < len(text) && isDigit(text[i+1])
}

// HasTimeRange reports whether text contains at least one well-formed range.
func HasTimeRange(text string) bool {
	for range TimeRanges(text) {
		return true
	}
	return false
}
