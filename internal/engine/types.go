package engine

import (
	"time"

	"probed/internal/auth"
	"probed/internal/history"
	"probed/internal/schedule"
)

// Config controls the engine.
type Config struct {
	// HistorySize caps the ledger; 0 uses history.DefaultCap.
	HistorySize int

	// TestDeadline force-clears the run-lock when a manual test never
	// reports back, appending a failed record. 0 uses 2 minutes.
	TestDeadline time.Duration

	// DefaultModel is substituted when a save would empty the selection.
	DefaultModel string

	// AvailableModels is the target list surfaced in snapshots.
	AvailableModels []string

	// Prompt is forwarded to the runner and recorded with each trigger.
	Prompt string

	// PreviewCount is how many upcoming fire times a snapshot carries.
	PreviewCount int
}

const (
	defaultTestDeadline = 2 * time.Minute
	defaultPreviewCount = 5
)

func (c Config) withDefaults() Config {
	if c.TestDeadline <= 0 {
		c.TestDeadline = defaultTestDeadline
	}
	if c.PreviewCount <= 0 {
		c.PreviewCount = defaultPreviewCount
	}
	if c.DefaultModel == "" {
		c.DefaultModel = schedule.DefaultModel
	}
	return c
}

// Snapshot is the immutable unit pushed to observers.
type Snapshot struct {
	Config          schedule.Config  `json:"config"`
	Auth            auth.State       `json:"auth"`
	History         []history.Record `json:"history"`
	NextFire        *time.Time       `json:"next_fire,omitempty"`
	Upcoming        []time.Time      `json:"upcoming,omitempty"`
	AvailableModels []string         `json:"available_models"`
	TestRunning     bool             `json:"test_running"`
	RevokePending   bool             `json:"revoke_pending"`
}
