package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"probed/internal/history"
	"probed/internal/schedule"
	logx "probed/pkg/logx"
)

func openTestStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "probed_store")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestFileStoreScheduleRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestStore(t, dir)

	if _, found, err := st.LoadSchedule(ctx); err != nil || found {
		t.Fatalf("expected no stored schedule on first run, found=%v err=%v", found, err)
	}

	cfg := schedule.Default()
	cfg.Enabled = true
	cfg.Crontab = "0 */6 * * *"
	cfg.SelectedModels = []string{"gpt-large"}
	if err := st.SaveSchedule(ctx, cfg); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and verify the snapshot survived.
	st = openTestStore(t, dir)
	defer st.Close()

	got, found, err := st.LoadSchedule(ctx)
	if err != nil || !found {
		t.Fatalf("LoadSchedule: found=%v err=%v", found, err)
	}
	if !got.Enabled || got.Crontab != cfg.Crontab || len(got.SelectedModels) != 1 {
		t.Fatalf("unexpected config after reload: %+v", got)
	}
}

func TestFileStoreHistoryJournal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestStore(t, dir)
	now := time.Now()
	for i := 0; i < 3; i++ {
		err := st.AppendRecord(ctx, history.Record{
			At:      now.Add(time.Duration(i) * time.Minute),
			Success: i != 1,
			Trigger: history.TriggerManual,
			Message: "probe",
		})
		if err != nil {
			t.Fatalf("AppendRecord: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st = openTestStore(t, dir)
	defer st.Close()

	got, err := st.ListRecords(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records after reload, got %d", len(got))
	}
	if !got[0].At.After(got[2].At) {
		t.Fatalf("expected most-recent-first order, got %v", got)
	}
	if got[1].Success {
		t.Fatal("middle record should be the failed one")
	}

	if err := st.ClearRecords(ctx); err != nil {
		t.Fatalf("ClearRecords: %v", err)
	}
	got, err = st.ListRecords(ctx, 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty history after clear, got %v err=%v", got, err)
	}

	// Limit applies.
	for i := 0; i < 5; i++ {
		_ = st.AppendRecord(ctx, history.Record{At: now, Trigger: history.TriggerAuto})
	}
	got, _ = st.ListRecords(ctx, 2)
	if len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
}
