package schedule

import (
	"sort"
	"strings"
	"time"
)

// Lookahead windows, in days. Weekly needs two weeks because a selected
// weekday may not recur within seven days of "now".
const (
	scanDays       = 7
	scanDaysWeekly = 14
)

// Next computes up to count future fire times for cfg, strictly after now.
//
// The result is ordered and deduplicated. A config whose required inputs are
// empty or malformed yields an empty result, never an error: "no candidates"
// is the signal the caller re-validates on.
func Next(cfg Config, now time.Time, count int) []time.Time {
	if count <= 0 {
		return nil
	}
	if cfg.CronActive() {
		return nextFromCron(cfg.Crontab, now, count)
	}
	switch cfg.RepeatMode {
	case RepeatDaily:
		return nextDaily(cfg, now, count)
	case RepeatWeekly:
		return nextWeekly(cfg, now, count)
	case RepeatInterval:
		return nextInterval(cfg, now, count)
	default:
		return nil
	}
}

// NextFire is the single upcoming fire time, or zero when there is none.
func NextFire(cfg Config, now time.Time) (time.Time, bool) {
	ts := Next(cfg, now, 1)
	if len(ts) == 0 {
		return time.Time{}, false
	}
	return ts[0], true
}

// collector accumulates future candidates up to a limit, dropping duplicates.
type collector struct {
	now   time.Time
	limit int
	seen  map[int64]struct{}
	out   []time.Time
}

func newCollector(now time.Time, limit int) *collector {
	return &collector{now: now, limit: limit, seen: map[int64]struct{}{}}
}

// add records t when it is strictly after now and not yet seen.
// It reports whether the collector still wants more candidates.
func (c *collector) add(t time.Time) bool {
	if t.After(c.now) {
		key := t.Unix()
		if _, dup := c.seen[key]; !dup {
			c.seen[key] = struct{}{}
			c.out = append(c.out, t)
		}
	}
	return len(c.out) < c.limit
}

func (c *collector) full() bool { return len(c.out) >= c.limit }

// nextFromCron walks a fixed 7-day window using only the minute and hour
// fields. Day-of-month, month and day-of-week must be present but do not
// filter candidates.
func nextFromCron(crontab string, now time.Time, count int) []time.Time {
	fields := strings.Fields(strings.TrimSpace(crontab))
	if len(fields) < 5 {
		return nil
	}

	minutes := sortedUnique(ParseField(fields[0], 59))
	hours := sortedUnique(ParseField(fields[1], 23))
	if len(minutes) == 0 || len(hours) == 0 {
		return nil
	}

	c := newCollector(now, count)
scan:
	for day := 0; day <= scanDays-1 && !c.full(); day++ {
		base := now.AddDate(0, 0, day)
		for _, h := range hours {
			for _, m := range minutes {
				// time.Date normalizes out-of-range values forward, which is
				// how unchecked comma-list entries behave (hour 25 lands on
				// the next day at 01:00).
				if !c.add(at(base, h, m)) {
					break scan
				}
			}
		}
	}
	// Normalization can push an out-of-range entry past a later candidate;
	// restore chronological order.
	sort.Slice(c.out, func(i, j int) bool { return c.out[i].Before(c.out[j]) })
	return c.out
}

func nextDaily(cfg Config, now time.Time, count int) []time.Time {
	times := sortedTimes(cfg.DailyTimes)
	if len(times) == 0 {
		return nil
	}

	c := newCollector(now, count)
	for day := 0; day <= scanDays-1 && !c.full(); day++ {
		base := now.AddDate(0, 0, day)
		for _, ts := range times {
			h, m, err := parseHHMM(ts)
			if err != nil {
				continue
			}
			if !c.add(at(base, h, m)) {
				return c.out
			}
		}
	}
	return c.out
}

func nextWeekly(cfg Config, now time.Time, count int) []time.Time {
	if len(cfg.WeeklyDays) == 0 || len(cfg.WeeklyTimes) == 0 {
		return nil
	}
	days := map[int]struct{}{}
	for _, d := range cfg.WeeklyDays {
		days[d] = struct{}{}
	}
	times := sortedTimes(cfg.WeeklyTimes)

	c := newCollector(now, count)
	for day := 0; day <= scanDaysWeekly-1 && !c.full(); day++ {
		base := now.AddDate(0, 0, day)
		if _, ok := days[int(base.Weekday())]; !ok {
			continue
		}
		for _, ts := range times {
			h, m, err := parseHHMM(ts)
			if err != nil {
				continue
			}
			if !c.add(at(base, h, m)) {
				return c.out
			}
		}
	}
	return c.out
}

func nextInterval(cfg Config, now time.Time, count int) []time.Time {
	startH, startM, err := parseHHMM(cfg.IntervalStart)
	if err != nil {
		return nil
	}
	endH, _, err := parseHHMM(cfg.IntervalEnd)
	if err != nil {
		return nil
	}
	step := cfg.IntervalHours
	if step < 1 {
		return nil
	}

	c := newCollector(now, count)
	for day := 0; day <= scanDays-1 && !c.full(); day++ {
		base := now.AddDate(0, 0, day)
		// The bound compares hours only; the end time's minute is ignored.
		for h := startH; h <= endH; h += step {
			if !c.add(at(base, h, startM)) {
				return c.out
			}
		}
	}
	return c.out
}

func at(base time.Time, hour, minute int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, base.Location())
}
