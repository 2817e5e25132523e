// Package schedule converts schedule descriptions — free text like
// "every tuesday at 3pm" or a standard 5-field cron expression — into
// concrete next fire times. Pure functions, no I/O.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Interval string

const (
	IntervalNone    Interval = ""
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Spec is the structured form of a schedule description. Fields the text
// does not mention stay unset; that is not an error. Warnings carry
// non-fatal ambiguities found while parsing (e.g. two weekday names).
type Spec struct {
	DayOfWeek *time.Weekday
	Hour      *int
	Minute    *int
	Interval  Interval
	CronExpr  string
	Warnings  []string
}

// Extraction rules are applied in a fixed order: weekday scan, then
// time-of-day, then explicit interval keywords. An explicit interval
// keyword overrides the weekly interval a weekday match implies.

var weekdayRules = []struct {
	day time.Weekday
	re  *regexp.Regexp
}{
	{time.Sunday, regexp.MustCompile(`\b(?:sunday|sun)\b`)},
	{time.Monday, regexp.MustCompile(`\b(?:monday|mon)\b`)},
	{time.Tuesday, regexp.MustCompile(`\b(?:tuesday|tues|tue)\b`)},
	{time.Wednesday, regexp.MustCompile(`\b(?:wednesday|wed)\b`)},
	{time.Thursday, regexp.MustCompile(`\b(?:thursday|thurs|thur|thu)\b`)},
	{time.Friday, regexp.MustCompile(`\b(?:friday|fri)\b`)},
	{time.Saturday, regexp.MustCompile(`\b(?:saturday|sat)\b`)},
}

var (
	// "3pm", "3:30 pm" — 12-hour clock with meridiem.
	meridiemRe = regexp.MustCompile(`\b(\d{1,2})(?::([0-5]\d))?\s*(am|pm)\b`)
	// "15:00" — 24-hour clock. A bare number is never treated as a time.
	clockRe = regexp.MustCompile(`\b(\d{1,2}):([0-5]\d)\b`)
)

var intervalRules = []struct {
	interval Interval
	re       *regexp.Regexp
}{
	{IntervalDaily, regexp.MustCompile(`\b(?:daily|every day)\b`)},
	{IntervalWeekly, regexp.MustCompile(`\b(?:weekly|every week)\b`)},
	{IntervalMonthly, regexp.MustCompile(`\b(?:monthly|every month)\b`)},
}

// Parse extracts a Spec from a schedule description. If the text is a
// valid cron expression it is recorded verbatim and the heuristic rules
// are skipped.
func Parse(text string) Spec {
	var spec Spec

	trimmed := strings.TrimSpace(text)
	if _, err := cron.ParseStandard(trimmed); err == nil {
		spec.CronExpr = trimmed
		return spec
	}

	lower := strings.ToLower(trimmed)

	var matched []time.Weekday
	for _, r := range weekdayRules {
		if r.re.MatchString(lower) {
			matched = append(matched, r.day)
		}
	}
	if len(matched) > 0 {
		day := matched[0]
		spec.DayOfWeek = &day
		spec.Interval = IntervalWeekly
		if len(matched) > 1 {
			spec.Warnings = append(spec.Warnings,
				fmt.Sprintf("multiple weekday names in %q; using %s", text, day))
		}
	}

	if m := meridiemRe.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour >= 1 && hour <= 12 {
			if m[3] == "pm" && hour < 12 {
				hour += 12
			}
			if m[3] == "am" && hour == 12 {
				hour = 0
			}
			spec.Hour, spec.Minute = &hour, &minute
		}
	} else if m := clockRe.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour <= 23 {
			spec.Hour, spec.Minute = &hour, &minute
		}
	}

	for _, r := range intervalRules {
		if r.re.MatchString(lower) {
			spec.Interval = r.interval
			break
		}
	}

	return spec
}

// NextRun computes the next fire time for a schedule description,
// strictly after now. An unknown or empty timezone falls back to UTC.
//
// A spec with no interval behaves as daily: the parsed time-of-day is
// placed on today's date and rolls to tomorrow once it has passed.
// Monthly schedules are anchored to day 1 of the month.
func NextRun(text, timezone string, now time.Time) time.Time {
	spec := Parse(text)

	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	now = now.In(loc)

	if spec.CronExpr != "" {
		if sched, err := cron.ParseStandard(spec.CronExpr); err == nil {
			return sched.Next(now)
		}
	}

	hour, minute := 0, 0
	if spec.Hour != nil {
		hour = *spec.Hour
	}
	if spec.Minute != nil {
		minute = *spec.Minute
	}

	switch {
	case spec.Interval == IntervalWeekly && spec.DayOfWeek != nil:
		delta := int(*spec.DayOfWeek) - int(now.Weekday())
		next := time.Date(now.Year(), now.Month(), now.Day()+delta, hour, minute, 0, 0, loc)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	case spec.Interval == IntervalMonthly:
		next := time.Date(now.Year(), now.Month(), 1, hour, minute, 0, 0, loc)
		if !next.After(now) {
			next = next.AddDate(0, 1, 0)
		}
		return next
	default:
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// ToCron renders a spec as a 5-field cron string. Returns false when no
// time-of-day was parsed — a cron entry without a time is meaningless.
func ToCron(spec Spec) (string, bool) {
	if spec.CronExpr != "" {
		return spec.CronExpr, true
	}
	if spec.Hour == nil {
		return "", false
	}

	minute := 0
	if spec.Minute != nil {
		minute = *spec.Minute
	}

	dom, dow := "*", "*"
	if spec.Interval == IntervalMonthly {
		dom = "1"
	}
	if spec.Interval == IntervalWeekly && spec.DayOfWeek != nil {
		dow = strconv.Itoa(int(*spec.DayOfWeek))
	}

	return fmt.Sprintf("%d %d %s * %s", minute, *spec.Hour, dom, dow), true
}

// TextToCron parses a schedule description and renders it as cron.
func TextToCron(text string) (string, bool) {
	return ToCron(Parse(text))
}

// Format renders a spec for human display. Not guaranteed to round-trip
// with the original text.
func Format(spec Spec) string {
	if spec.CronExpr != "" {
		return spec.CronExpr
	}

	var parts []string
	switch spec.Interval {
	case IntervalWeekly:
		if spec.DayOfWeek != nil {
			parts = append(parts, "every "+strings.ToLower(spec.DayOfWeek.String()))
		} else {
			parts = append(parts, "weekly")
		}
	case IntervalDaily:
		parts = append(parts, "every day")
	case IntervalMonthly:
		parts = append(parts, "monthly on day 1")
	}
	if spec.Hour != nil {
		minute := 0
		if spec.Minute != nil {
			minute = *spec.Minute
		}
		parts = append(parts, "at "+formatClock(*spec.Hour, minute))
	}
	if len(parts) == 0 {
		return "unscheduled"
	}
	return strings.Join(parts, " ")
}

func formatClock(hour, minute int) string {
	suffix := "am"
	h := hour
	switch {
	case hour == 0:
		h = 12
	case hour == 12:
		suffix = "pm"
	case hour > 12:
		h = hour - 12
		suffix = "pm"
	}
	return fmt.Sprintf("%d:%02d%s", h, minute, suffix)
}
