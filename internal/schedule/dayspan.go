package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// OpeningHoursMarker introduces a facility's general opening hours.
const OpeningHoursMarker = "Öffnungszeiten"

var (
	dayTokenPattern = regexp.MustCompile(
		`\b(Montag|Dienstag|Mittwoch|Donnerstag|Freitag|Samstag|Sonntag|Mo|Di|Mi|Do|Fr|Sa|So)(s?)\b\.?`,
	)
	parentheticalPattern = regexp.MustCompile(`\([^()]*\)`)
)

var dayAbbreviations = map[string]int{
	"Mo": 0, "Di": 1, "Mi": 2, "Do": 3, "Fr": 4, "Sa": 5, "So": 6,
}

type dayToken struct {
	day        int
	start, end int
}

// ExpandDays turns a day descriptor into the ascending set of weekday
// ordinals it names: a single day, a list ("Montag, Mittwoch"), an inclusive
// range ("Montag – Freitag", "Mo bis Fr") or the daily sentinel "täglich".
//
// A range running backwards across Sunday is not supported and is dropped;
// ErrInvalidWeekdaySpan is returned only when nothing else in the descriptor
// yields a day.
func ExpandDays(descriptor string) ([]int, error) {
	if containsFold(descriptor, DailySentinel) {
		return allWeekdays(), nil
	}

	// Parenthetical notes like "(außer Mittwoch)" must not add days, unless
	// the days only appear inside parentheses.
	text := parentheticalPattern.ReplaceAllString(descriptor, " ")
	tokens := findDayTokens(text)
	if len(tokens) == 0 {
		text = descriptor
		tokens = findDayTokens(text)
	}
	if len(tokens) == 0 {
		if containsFold(descriptor, OpeningHoursMarker) {
			return allWeekdays(), nil
		}
		return nil, ErrNoWeekdayFound
	}

	var set [7]bool
	var spanErr error
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if i+1 < len(tokens) && isRangeJoiner(text, tok, tokens[i+1]) {
			next := tokens[i+1]
			i++
			if next.day < tok.day {
				spanErr = fmt.Errorf("%w: %s – %s", ErrInvalidWeekdaySpan, WeekdayName(tok.day), WeekdayName(next.day))
				continue
			}
			for d := tok.day; d <= next.day; d++ {
				set[d] = true
			}
			continue
		}
		set[tok.day] = true
	}

	days := make([]int, 0, 7)
	for d, ok := range set {
		if ok {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		if spanErr != nil {
			return nil, spanErr
		}
		return nil, ErrNoWeekdayFound
	}
	return days, nil
}

// HasDayToken reports whether text names a weekday or the daily sentinel.
func HasDayToken(text string) bool {
	return containsFold(text, DailySentinel) || len(findDayTokens(text)) > 0
}

func findDayTokens(text string) []dayToken {
	matches := dayTokenPattern.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]dayToken, 0, len(matches))
	for _, m := range matches {
		name := text[m[2]:m[3]]
		plural := m[5] > m[4]
		if d, err := LookupWeekday(name); err == nil {
			tokens = append(tokens, dayToken{day: d, start: m[0], end: m[1]})
			continue
		}
		if plural {
			// "Mos", "Frs" are not words.
			continue
		}
		d, ok := dayAbbreviations[name]
		if !ok || !abbreviationStandsAlone(text, m[1]) {
			continue
		}
		tokens = append(tokens, dayToken{day: d, start: m[0], end: m[1]})
	}
	return tokens
}

func isRangeJoiner(text string, from, to dayToken) bool {
	switch strings.TrimSpace(text[from.end:to.start]) {
	case "-", "–", "—", "bis":
		return true
	}
	return false
}

// abbreviationStandsAlone looks at the word after an abbreviation so that
// "So lange" is not read as Sunday while "So 10:00", "Mo–Fr" and
// "Mo. bis Fr." are.
func abbreviationStandsAlone(text string, i int) bool {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == ' ' || r == '\t' {
			i += size
			continue
		}
		if !unicode.IsLetter(r) {
			return true
		}
		word := leadingWord(text[i:])
		if word == "bis" || word == "und" {
			return true
		}
		_, isAbbr := dayAbbreviations[word]
		_, isName := weekdayOrdinals[strings.TrimSuffix(word, "s")]
		return isAbbr || isName
	}
	return true
}

func leadingWord(s string) string {
	for i, r := range s {
		if !unicode.IsLetter(r) {
			return s[:i]
		}
	}
	return s
}
