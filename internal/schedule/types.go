package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RepeatMode selects the structured schedule shape.
// It is only consulted when no crontab override is present.
type RepeatMode string

const (
	RepeatDaily    RepeatMode = "daily"
	RepeatWeekly   RepeatMode = "weekly"
	RepeatInterval RepeatMode = "interval"
)

// DefaultModel is the built-in target substituted when the selection would
// otherwise be empty.
const DefaultModel = "default"

// Config is the persisted shape of the user's trigger intent.
//
// It is replaced wholesale on save and never mutated field-by-field from
// outside the engine. Normalize() restores the non-empty floors before a
// config is committed.
type Config struct {
	Enabled    bool       `json:"enabled"`
	RepeatMode RepeatMode `json:"repeat_mode"`

	DailyTimes []string `json:"daily_times"` // "HH:MM", kept sorted for preview

	WeeklyDays  []int    `json:"weekly_days"` // 0 = Sunday
	WeeklyTimes []string `json:"weekly_times"`

	IntervalHours int    `json:"interval_hours"`
	IntervalStart string `json:"interval_start"` // "HH:MM"
	IntervalEnd   string `json:"interval_end"`   // "HH:MM"; minute is ignored by the bound check

	// Crontab, when non-blank, fully overrides the structured fields above.
	Crontab string `json:"crontab,omitempty"`

	SelectedModels []string `json:"selected_models"`
}

// Default returns the config created on first load.
func Default() Config {
	return Config{
		Enabled:        false,
		RepeatMode:     RepeatDaily,
		DailyTimes:     []string{"08:00"},
		WeeklyDays:     []int{1, 2, 3, 4, 5}, // workdays
		WeeklyTimes:    []string{"08:00"},
		IntervalHours:  4,
		IntervalStart:  "08:00",
		IntervalEnd:    "22:00",
		SelectedModels: []string{DefaultModel},
	}
}

// CronActive reports whether the crontab override governs fire-time
// computation (the exclusivity rule).
func (c Config) CronActive() bool {
	return strings.TrimSpace(c.Crontab) != ""
}

// Normalize enforces the non-empty floors: daily/weekly times, weekly days
// and the target selection are never empty in a persisted config. Removal of
// the last element is substituted, not rejected.
//
// defaultModel may be empty, in which case the built-in DefaultModel is used.
func Normalize(c Config, defaultModel string) Config {
	def := Default()

	switch c.RepeatMode {
	case RepeatDaily, RepeatWeekly, RepeatInterval:
	default:
		c.RepeatMode = def.RepeatMode
	}

	if len(c.DailyTimes) == 0 {
		c.DailyTimes = def.DailyTimes
	}
	if len(c.WeeklyDays) == 0 {
		c.WeeklyDays = def.WeeklyDays
	}
	if len(c.WeeklyTimes) == 0 {
		c.WeeklyTimes = def.WeeklyTimes
	}
	if c.IntervalHours < 1 {
		c.IntervalHours = def.IntervalHours
	}
	if strings.TrimSpace(c.IntervalStart) == "" {
		c.IntervalStart = def.IntervalStart
	}
	if strings.TrimSpace(c.IntervalEnd) == "" {
		c.IntervalEnd = def.IntervalEnd
	}

	models := make([]string, 0, len(c.SelectedModels))
	for _, m := range c.SelectedModels {
		if strings.TrimSpace(m) != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		if strings.TrimSpace(defaultModel) == "" {
			defaultModel = DefaultModel
		}
		models = []string{defaultModel}
	}
	c.SelectedModels = models

	return c
}

// sortedTimes returns a sorted copy. Zero-padded HH:MM strings sort
// lexicographically in chronological order.
func sortedTimes(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
