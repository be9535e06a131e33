package storage

import (
	"context"
	"errors"
	"strings"

	"probed/internal/history"
	"probed/internal/schedule"
	logx "probed/pkg/logx"
)

// Store is the minimal persistence API used by the engine.
type Store interface {
	// SaveSchedule replaces the stored config wholesale.
	SaveSchedule(ctx context.Context, cfg schedule.Config) error
	// LoadSchedule returns (config, found, error); found is false on first run.
	LoadSchedule(ctx context.Context) (schedule.Config, bool, error)

	AppendRecord(ctx context.Context, r history.Record) error
	// ListRecords returns up to limit records, most-recent-first.
	ListRecords(ctx context.Context, limit int) ([]history.Record, error)
	ClearRecords(ctx context.Context) error

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
