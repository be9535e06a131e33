package schedule

import (
	"testing"
	"time"
)

func dailyConfig(times ...string) Config {
	cfg := Default()
	cfg.RepeatMode = RepeatDaily
	cfg.DailyTimes = times
	return cfg
}

func TestNextDailySingleTime(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 6, 30, 0, 0, time.UTC)
	got := Next(dailyConfig("08:00"), now, 1)
	want := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)
	if len(got) != 1 || !got[0].Equal(want) {
		t.Fatalf("Next = %v, want [%v]", got, want)
	}
}

func TestNextResultsStrictlyFuture(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)
	// now is exactly a configured time; it must not be returned.
	got := Next(dailyConfig("08:00", "12:00"), now, 10)
	if len(got) > 10 {
		t.Fatalf("result longer than count: %d", len(got))
	}
	for _, ts := range got {
		if !ts.After(now) {
			t.Fatalf("candidate %v is not strictly after now %v", ts, now)
		}
	}
	if got[0].Hour() != 12 {
		t.Fatalf("expected 12:00 first, got %v", got[0])
	}
}

func TestNextIdempotent(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 6, 30, 0, 0, time.UTC)
	cfg := dailyConfig("08:00", "20:00")
	a := Next(cfg, now, 5)
	b := Next(cfg, now, 5)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("result %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestCrontabOverridesStructuredMode(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)
	cfg := dailyConfig("08:00")
	cfg.Crontab = "0 12 * * *"

	got := Next(cfg, now, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %v", got)
	}
	for _, ts := range got {
		if ts.Hour() != 12 || ts.Minute() != 0 {
			t.Fatalf("structured path leaked into cron override: %v", ts)
		}
	}
}

func TestNextWeekly(t *testing.T) {
	t.Parallel()
	// 2026-03-05 is a Thursday.
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	if now.Weekday() != time.Thursday {
		t.Fatalf("fixture date is %v, want Thursday", now.Weekday())
	}

	cfg := Default()
	cfg.RepeatMode = RepeatWeekly
	cfg.WeeklyDays = []int{1, 3, 5} // Mon, Wed, Fri
	cfg.WeeklyTimes = []string{"09:00"}

	got := Next(cfg, now, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %v", got)
	}
	wantFri := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	wantMon := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if !got[0].Equal(wantFri) || !got[1].Equal(wantMon) {
		t.Fatalf("got %v, want [%v %v]", got, wantFri, wantMon)
	}
}

func TestNextInterval(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)

	cfg := Default()
	cfg.RepeatMode = RepeatInterval
	cfg.IntervalStart = "07:00"
	cfg.IntervalEnd = "22:00"
	cfg.IntervalHours = 4

	got := Next(cfg, now, 4)
	wantHours := []int{7, 11, 15, 19}
	if len(got) != 4 {
		t.Fatalf("expected 4 results, got %v", got)
	}
	for i, ts := range got {
		if ts.Day() != now.Day() || ts.Hour() != wantHours[i] || ts.Minute() != 0 {
			t.Fatalf("result %d = %v, want %02d:00 same day", i, ts, wantHours[i])
		}
	}

	// 23:00 exceeds the hour-only end bound, so the fifth slot is next day 07:00.
	got = Next(cfg, now, 5)
	if len(got) != 5 {
		t.Fatalf("expected 5 results, got %v", got)
	}
	wantFifth := time.Date(2026, 3, 6, 7, 0, 0, 0, time.UTC)
	if !got[4].Equal(wantFifth) {
		t.Fatalf("fifth result = %v, want %v", got[4], wantFifth)
	}
}

func TestNextIntervalEndMinuteIgnored(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	cfg := Default()
	cfg.RepeatMode = RepeatInterval
	cfg.IntervalStart = "08:30"
	cfg.IntervalEnd = "10:00" // minute 00 < start minute 30, but only hours compare
	cfg.IntervalHours = 2

	got := Next(cfg, now, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %v", got)
	}
	if got[0].Hour() != 8 || got[0].Minute() != 30 || got[1].Hour() != 10 || got[1].Minute() != 30 {
		t.Fatalf("got %v, want 08:30 and 10:30", got)
	}
}

func TestNextCronEverySixHours(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 1, 0, 0, 0, time.UTC)

	cfg := Config{Crontab: "0 */6 * * *"}
	got := Next(cfg, now, 5)

	want := []time.Time{
		time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 6, 6, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %v", len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("result %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNextCronCommaListsSorted(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	// Candidates ascend even though the lists are given out of order.
	cfg := Config{Crontab: "30,10 8,6 * * *"}
	got := Next(cfg, now, 4)
	want := []time.Time{
		time.Date(2026, 3, 5, 6, 10, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 6, 30, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 8, 10, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 8, 30, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %v", len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("result %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNextCronTooFewFields(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if got := Next(Config{Crontab: "0 8 *"}, now, 3); len(got) != 0 {
		t.Fatalf("expected no candidates for short expression, got %v", got)
	}
}

func TestNextDefensiveEmptyInputs(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "daily no times", cfg: Config{RepeatMode: RepeatDaily}},
		{name: "weekly no days", cfg: Config{RepeatMode: RepeatWeekly, WeeklyTimes: []string{"09:00"}}},
		{name: "interval bad bounds", cfg: Config{RepeatMode: RepeatInterval, IntervalStart: "xx", IntervalEnd: "22:00", IntervalHours: 2}},
		{name: "unknown mode", cfg: Config{RepeatMode: "hourly"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Next(tt.cfg, now, 3); len(got) != 0 {
				t.Fatalf("expected empty result, got %v", got)
			}
		})
	}
}

func TestNextFire(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)
	ts, ok := NextFire(dailyConfig("08:00"), now)
	if !ok || ts.Hour() != 8 {
		t.Fatalf("NextFire = %v, %v", ts, ok)
	}
	if _, ok := NextFire(Config{RepeatMode: RepeatDaily}, now); ok {
		t.Fatal("expected no fire time for empty config")
	}
}
