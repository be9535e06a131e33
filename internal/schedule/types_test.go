package schedule

import (
	"testing"
)

func TestNormalizeRestoresFloors(t *testing.T) {
	t.Parallel()

	cfg := Config{
		RepeatMode:     "bogus",
		DailyTimes:     nil,
		WeeklyDays:     nil,
		WeeklyTimes:    nil,
		IntervalHours:  0,
		SelectedModels: []string{"", "  "},
	}
	got := Normalize(cfg, "")

	if got.RepeatMode != RepeatDaily {
		t.Fatalf("RepeatMode = %q, want daily", got.RepeatMode)
	}
	if len(got.DailyTimes) == 0 || len(got.WeeklyDays) == 0 || len(got.WeeklyTimes) == 0 {
		t.Fatalf("empty floors not restored: %+v", got)
	}
	if got.IntervalHours < 1 {
		t.Fatalf("IntervalHours = %d, want >= 1", got.IntervalHours)
	}
	if len(got.SelectedModels) != 1 || got.SelectedModels[0] != DefaultModel {
		t.Fatalf("SelectedModels = %v, want [%s]", got.SelectedModels, DefaultModel)
	}
}

func TestNormalizeKeepsValidConfig(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.DailyTimes = []string{"06:15", "18:45"}
	cfg.SelectedModels = []string{"gpt-large", "sonnet"}

	got := Normalize(cfg, "fallback")
	if len(got.DailyTimes) != 2 || got.DailyTimes[0] != "06:15" {
		t.Fatalf("DailyTimes mutated: %v", got.DailyTimes)
	}
	if len(got.SelectedModels) != 2 {
		t.Fatalf("SelectedModels mutated: %v", got.SelectedModels)
	}
}

func TestNormalizeUsesConfiguredDefaultModel(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.SelectedModels = nil
	got := Normalize(cfg, "probe-default")
	if len(got.SelectedModels) != 1 || got.SelectedModels[0] != "probe-default" {
		t.Fatalf("SelectedModels = %v, want [probe-default]", got.SelectedModels)
	}
}

func TestCronActive(t *testing.T) {
	t.Parallel()
	if (Config{Crontab: "   "}).CronActive() {
		t.Fatal("blank crontab must not activate the override")
	}
	if !(Config{Crontab: "0 8 * * *"}).CronActive() {
		t.Fatal("non-blank crontab must activate the override")
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	if err != nil {
		t.Fatalf("parseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}

	if _, _, err := parseHHMM("24:00"); err == nil {
		t.Fatal("expected error for invalid hour")
	}
}
