package schedule

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CrontabCheck is the result of validating a crontab override.
//
// OK reflects the preview engine only: "would this expression produce any
// future candidate". Hint carries user-facing messaging about the restricted
// subset, including the strict parser's complaint when the expression is not
// standard cron at all.
type CrontabCheck struct {
	OK         bool        `json:"ok"`
	Candidates []time.Time `json:"candidates,omitempty"`
	Hint       string      `json:"hint,omitempty"`
}

// strictParser is a standard 5-field cron parser used for advisory messaging
// only; the preview engine never delegates to it.
var strictParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateCrontab runs the preview engine on expr and reports whether any
// future candidate was produced.
//
// An invalid expression is indistinguishable from "genuinely no upcoming
// times" at the engine level (both are empty results), so the strict parser
// is consulted to give the user a better hint.
func ValidateCrontab(expr string, now time.Time) CrontabCheck {
	check := CrontabCheck{}

	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		check.Hint = "crontab is empty"
		return check
	}

	check.Candidates = nextFromCron(trimmed, now, 3)
	check.OK = len(check.Candidates) > 0

	if _, err := strictParser.Parse(trimmed); err != nil {
		check.Hint = "not a standard cron expression: " + err.Error()
		return check
	}

	if fields := strings.Fields(trimmed); len(fields) >= 5 {
		for _, f := range fields[2:5] {
			if f != "*" {
				check.Hint = "day-of-month, month and day-of-week fields are ignored; only minute and hour drive the schedule"
				break
			}
		}
	}
	return check
}
