package scheduler

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Patterns for the natural-language schedule grammar. All matching is
// case-insensitive on a lowercased phrase.
var (
	inRelativeRe = regexp.MustCompile(`in\s+(\d+)\s*(seconds?|secs?|minutes?|mins?|hours?|hrs?)`)
	everyNRe     = regexp.MustCompile(`every\s+(\d+)\s*(minutes?|mins?|hours?|hrs?)`)
	dailyAtRe    = regexp.MustCompile(`every\s*day\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	tomorrowAtRe = regexp.MustCompile(`tomorrow\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	bareTimeRe   = regexp.MustCompile(`(?:at\s+)?\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

// ParseSchedule converts a natural-language phrase into a Schedule.
// Rules are tried in a fixed order; the first match wins:
//
//  1. "in N seconds/minutes/hours"    → one-shot at now+N
//  2. "every N minutes/hours"         → recurring interval
//  3. "every day at H[:MM][am|pm]"    → daily at that local time
//  4. "tomorrow at H[:MM][am|pm]"     → one-shot tomorrow
//  5. bare time "[at] H[:MM][am|pm]"  → today, or tomorrow if passed
//  6. anything else                   → one-shot at now+1 minute
//
// Rule 2 requires a digit after "every", so "every day at 8" can never
// be swallowed by the interval rule. The parser never fails; an
// unintelligible phrase falls through to the near-immediate one-shot
// so the request is still visible to the user.
func ParseSchedule(phrase string, now time.Time) Schedule {
	p := strings.ToLower(strings.TrimSpace(phrase))

	// Rule 1: relative offset.
	if m := inRelativeRe.FindStringSubmatch(p); m != nil {
		n, _ := strconv.Atoi(m[1])
		at := now.Add(time.Duration(n) * unitDuration(m[2]))
		return Schedule{Kind: ScheduleAt, At: &at}
	}

	// Rule 2: recurring interval. Requires a digit, so "every day at"
	// falls through to rule 3.
	if m := everyNRe.FindStringSubmatch(p); m != nil {
		n, _ := strconv.Atoi(m[1])
		every := Duration{Duration: time.Duration(n) * unitDuration(m[2])}
		return Schedule{Kind: ScheduleEvery, Every: &every}
	}

	// Rule 3: daily at a fixed time.
	if m := dailyAtRe.FindStringSubmatch(p); m != nil {
		hour, min := clockFrom(m[1], m[2], m[3])
		return Schedule{Kind: ScheduleDaily, Hour: hour, Min: min}
	}

	// Rule 4: tomorrow at a fixed time.
	if m := tomorrowAtRe.FindStringSubmatch(p); m != nil {
		hour, min := clockFrom(m[1], m[2], m[3])
		at := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location()).AddDate(0, 0, 1)
		return Schedule{Kind: ScheduleAt, At: &at}
	}

	// Rule 5: bare time, today or tomorrow. Minutes and meridiem are
	// both optional, so a lone hour ("9") counts. Numbers that cannot
	// be a clock reading are skipped rather than clamped.
	for _, m := range bareTimeRe.FindAllStringSubmatch(p, -1) {
		if h, _ := strconv.Atoi(m[1]); h > 23 {
			continue
		}
		if m[2] != "" {
			if mm, _ := strconv.Atoi(m[2]); mm > 59 {
				continue
			}
		}
		hour, min := clockFrom(m[1], m[2], m[3])
		at := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return Schedule{Kind: ScheduleAt, At: &at}
	}

	// Rule 6: fallback so scheduling never fails outright.
	at := now.Add(time.Minute)
	return Schedule{Kind: ScheduleAt, At: &at}
}

// unitDuration maps a matched unit word to its base duration.
func unitDuration(unit string) time.Duration {
	switch {
	case strings.HasPrefix(unit, "sec"):
		return time.Second
	case strings.HasPrefix(unit, "min"):
		return time.Minute
	default:
		return time.Hour
	}
}

// clockFrom converts matched hour/minute/meridiem strings to a 24-hour
// clock. "12am" is midnight and "12pm" is noon.
func clockFrom(hourStr, minStr, meridiem string) (int, int) {
	hour, _ := strconv.Atoi(hourStr)
	min := 0
	if minStr != "" {
		min, _ = strconv.Atoi(minStr)
	}

	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 {
		hour = 23
	}
	if min > 59 {
		min = 59
	}
	return hour, min
}
