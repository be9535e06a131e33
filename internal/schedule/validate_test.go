package schedule

import (
	"strings"
	"testing"
	"time"
)

func TestValidateCrontab(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		expr     string
		ok       bool
		wantHint string // substring, empty means no hint expected
	}{
		{name: "plain daily", expr: "0 8 * * *", ok: true},
		{name: "ignored fields hint", expr: "0 8 1 * 2", ok: true, wantHint: "ignored"},
		{name: "too few fields", expr: "0 8 *", ok: false, wantHint: "not a standard cron expression"},
		{name: "garbage", expr: "once a day please", ok: false, wantHint: "not a standard cron expression"},
		{name: "empty", expr: "  ", ok: false, wantHint: "empty"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateCrontab(tt.expr, now)
			if got.OK != tt.ok {
				t.Fatalf("OK = %v, want %v (hint: %s)", got.OK, tt.ok, got.Hint)
			}
			if tt.wantHint == "" && got.Hint != "" {
				t.Fatalf("unexpected hint: %s", got.Hint)
			}
			if tt.wantHint != "" && !strings.Contains(got.Hint, tt.wantHint) {
				t.Fatalf("hint %q does not contain %q", got.Hint, tt.wantHint)
			}
			if got.OK && len(got.Candidates) == 0 {
				t.Fatal("OK but no candidates reported")
			}
		})
	}
}
