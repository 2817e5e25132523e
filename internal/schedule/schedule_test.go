package schedule_test

import (
	"strings"
	"testing"
	"time"

	"github.com/coursekit/mailsched/internal/schedule"
)

func wd(d time.Weekday) *time.Weekday { return &d }

func TestParse(t *testing.T) {
	tests := []struct {
		text         string
		wantDay      *time.Weekday
		wantHour     int // -1 means unset
		wantMinute   int
		wantInterval schedule.Interval
	}{
		{"every tuesday at 3pm", wd(time.Tuesday), 15, 0, schedule.IntervalWeekly},
		{"every tuesday at 3:30pm", wd(time.Tuesday), 15, 30, schedule.IntervalWeekly},
		{"wed 9am", wd(time.Wednesday), 9, 0, schedule.IntervalWeekly},
		{"every day at 9am", nil, 9, 0, schedule.IntervalDaily},
		{"daily at 15:45", nil, 15, 45, schedule.IntervalDaily},
		{"monthly at 12am", nil, 0, 0, schedule.IntervalMonthly},
		{"at 12pm", nil, 12, 0, schedule.IntervalNone},
		{"whenever", nil, -1, 0, schedule.IntervalNone},
		// explicit keyword overrides the weekday-implied weekly interval
		{"monday, daily at 8am", wd(time.Monday), 8, 0, schedule.IntervalDaily},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			spec := schedule.Parse(tt.text)

			if (spec.DayOfWeek == nil) != (tt.wantDay == nil) {
				t.Fatalf("day of week = %v, want %v", spec.DayOfWeek, tt.wantDay)
			}
			if tt.wantDay != nil && *spec.DayOfWeek != *tt.wantDay {
				t.Errorf("day of week = %s, want %s", *spec.DayOfWeek, *tt.wantDay)
			}
			if tt.wantHour == -1 {
				if spec.Hour != nil {
					t.Errorf("hour = %d, want unset", *spec.Hour)
				}
			} else {
				if spec.Hour == nil || *spec.Hour != tt.wantHour {
					t.Errorf("hour = %v, want %d", spec.Hour, tt.wantHour)
				}
				if spec.Minute == nil || *spec.Minute != tt.wantMinute {
					t.Errorf("minute = %v, want %d", spec.Minute, tt.wantMinute)
				}
			}
			if spec.Interval != tt.wantInterval {
				t.Errorf("interval = %q, want %q", spec.Interval, tt.wantInterval)
			}
		})
	}
}

func TestParse_FirstWeekdayWinsWithWarning(t *testing.T) {
	spec := schedule.Parse("monday or friday at 10am")

	if spec.DayOfWeek == nil || *spec.DayOfWeek != time.Monday {
		t.Fatalf("day of week = %v, want Monday", spec.DayOfWeek)
	}
	if len(spec.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", spec.Warnings)
	}
	if !strings.Contains(spec.Warnings[0], "Monday") {
		t.Errorf("warning %q does not name the chosen day", spec.Warnings[0])
	}
}

func TestParse_CronPassthrough(t *testing.T) {
	spec := schedule.Parse("0 15 * * 2")
	if spec.CronExpr != "0 15 * * 2" {
		t.Fatalf("cron expr = %q, want passthrough", spec.CronExpr)
	}

	expr, ok := schedule.ToCron(spec)
	if !ok || expr != "0 15 * * 2" {
		t.Errorf("ToCron = %q, %v", expr, ok)
	}
}

func TestNextRun_WeeklySameWeek(t *testing.T) {
	// Monday 10:00 UTC; "every tuesday at 3pm" fires the next day.
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if now.Weekday() != time.Monday {
		t.Fatal("fixture is not a Monday")
	}

	got := schedule.NextRun("every tuesday at 3pm", "UTC", now)
	want := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next run = %s, want %s", got, want)
	}
}

func TestNextRun_WeeklySameDayPassed(t *testing.T) {
	// Tuesday 16:00 — today's 3pm has passed, so next week.
	now := time.Date(2026, 3, 3, 16, 0, 0, 0, time.UTC)

	got := schedule.NextRun("every tuesday at 3pm", "UTC", now)
	want := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next run = %s, want %s", got, want)
	}
}

func TestNextRun_DailyRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	got := schedule.NextRun("daily at 9am", "UTC", now)
	want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next run = %s, want %s", got, want)
	}
}

func TestNextRun_BareTimeBehavesAsDaily(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	got := schedule.NextRun("at 11am", "UTC", now)
	want := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next run = %s, want %s", got, want)
	}
}

func TestNextRun_MonthlyAnchorsToFirstOfMonth(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	got := schedule.NextRun("monthly at 8am", "UTC", now)
	want := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next run = %s, want %s", got, want)
	}
}

func TestNextRun_HonorsTimezone(t *testing.T) {
	// 14:00 UTC is 09:00 in New York — "daily at 10am" is still due today there.
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	got := schedule.NextRun("daily at 10am", "America/New_York", now)

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	want := time.Date(2026, 3, 2, 10, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("next run = %s, want %s", got, want)
	}
}

func TestNextRun_AlwaysStrictlyAfterNow(t *testing.T) {
	texts := []string{
		"every tuesday at 3pm",
		"every sunday at 12am",
		"daily at 9am",
		"weekly",
		"monthly at 11:59pm",
		"at 12pm",
		"",
		"0 15 * * 2",
	}
	nows := []time.Time{
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
	}

	for _, text := range texts {
		for _, now := range nows {
			got := schedule.NextRun(text, "UTC", now)
			if !got.After(now) {
				t.Errorf("NextRun(%q, now=%s) = %s, not strictly after now", text, now, got)
			}
		}
	}
}

func TestNextRun_WeeklyMatchesSpec(t *testing.T) {
	now := time.Date(2026, 3, 5, 18, 30, 0, 0, time.UTC)

	got := schedule.NextRun("every friday at 7:15am", "UTC", now)
	if got.Weekday() != time.Friday {
		t.Errorf("weekday = %s, want Friday", got.Weekday())
	}
	if got.Hour() != 7 || got.Minute() != 15 {
		t.Errorf("time of day = %02d:%02d, want 07:15", got.Hour(), got.Minute())
	}
}

func TestToCron(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"every tuesday at 3pm", "0 15 * * 2", true},
		{"daily at 9:30am", "30 9 * * *", true},
		{"monthly at 8am", "0 8 1 * *", true},
		{"at 12am", "0 0 * * *", true},
		{"every tuesday", "", false}, // no time-of-day parsed
		{"whenever", "", false},
	}

	for _, tt := range tests {
		got, ok := schedule.TextToCron(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("TextToCron(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"every tuesday at 3pm", "every tuesday at 3:00pm"},
		{"daily at 9:30am", "every day at 9:30am"},
		{"monthly at 12am", "monthly on day 1 at 12:00am"},
		{"whenever", "unscheduled"},
		{"0 15 * * 2", "0 15 * * 2"},
	}

	for _, tt := range tests {
		if got := schedule.Format(schedule.Parse(tt.text)); got != tt.want {
			t.Errorf("Format(Parse(%q)) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
