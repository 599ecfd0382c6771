// Package normalizer converts raw cell text into canonical values: dates as
// YYYY-MM-DD, amounts as signed decimals, and vendor names stripped of bank
// noise for comparison.
package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date representation.
const DateLayout = "2006-01-02"

var (
	isoDatePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slashedISOPattern  = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`)
	numericDatePattern = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})$`)
)

// fallbackLayouts are tried in order when no numeric pattern matches.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/1/2",
	"2006-1-2",
	"2006.01.02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Mon, 2 Jan 2006",
	"Mon Jan 2 2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"2-Jan-06",
	"20060102",
}

// NormalizeDate converts raw into YYYY-MM-DD. ISO dates pass through,
// YYYY/MM/DD is hyphenated, and D/M/YYYY style dates (with '/', '-' or '.')
// are resolved by value: a component above 12 must be the day, and when both
// could be a month the first is taken as the day. Anything else goes through
// a list of common layouts. The second result is false when nothing fits.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if isoDatePattern.MatchString(s) {
		return s, true
	}

	if slashedISOPattern.MatchString(s) {
		return strings.ReplaceAll(s, "/", "-"), true
	}

	if m := numericDatePattern.FindStringSubmatch(s); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])

		day, month := first, second
		if first <= 12 && second > 12 {
			day, month = second, first
		}
		return civilDate(year, month, day)
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}

	return "", false
}

// civilDate formats a calendar date, rejecting impossible ones like 31/02.
func civilDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// ParseDate parses a canonical YYYY-MM-DD date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DaysBetween returns the absolute number of calendar days between two
// canonical dates.
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDate(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDate(b)
	if err != nil {
		return 0, err
	}
	days := int(ta.Sub(tb).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, nil
}
