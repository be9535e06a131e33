package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"probed/internal/auth"
	"probed/internal/history"
	"probed/internal/runner"
	"probed/internal/schedule"
	logx "probed/pkg/logx"
)

type memStore struct {
	mu       sync.Mutex
	sched    schedule.Config
	found    bool
	records  []history.Record
	saveErr  error
	saves    int
	appendEr error
}

func (m *memStore) SaveSchedule(_ context.Context, cfg schedule.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sched = cfg
	m.found = true
	m.saves++
	return nil
}

func (m *memStore) LoadSchedule(context.Context) (schedule.Config, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sched, m.found, nil
}

func (m *memStore) AppendRecord(_ context.Context, r history.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendEr != nil {
		return m.appendEr
	}
	m.records = append([]history.Record{r}, m.records...)
	return nil
}

func (m *memStore) ListRecords(_ context.Context, limit int) ([]history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]history.Record(nil), m.records...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ClearRecords(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

func (m *memStore) Close() error { return nil }

func okRunner() runner.Runner {
	return runner.Func(func(_ context.Context, models []string) ([]runner.Outcome, error) {
		out := make([]runner.Outcome, 0, len(models))
		for _, m := range models {
			out = append(out, runner.Outcome{Model: m, Success: true})
		}
		return out, nil
	})
}

func newTestService(t *testing.T, authorized bool, run runner.Runner) (*Service, *memStore) {
	t.Helper()
	if run == nil {
		run = okRunner()
	}
	store := &memStore{}
	s := New(Config{
		DefaultModel:    "default",
		AvailableModels: []string{"default", "alpha", "beta"},
		Prompt:          "ping",
	}, auth.NewStatic(authorized, "dev@example.com"), run, store, nil, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s, store
}

func TestSaveScheduleSubstitutesDefaultModel(t *testing.T) {
	t.Parallel()
	s, store := newTestService(t, true, nil)

	cfg := schedule.Default()
	cfg.SelectedModels = nil
	snap, err := s.SaveSchedule(context.Background(), cfg)
	if err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}
	if got := snap.Config.SelectedModels; len(got) != 1 || got[0] != "default" {
		t.Fatalf("selected models = %v, want [default]", got)
	}
	if !store.found {
		t.Fatal("schedule not persisted")
	}
}

func TestSaveScheduleRequiresAuthorization(t *testing.T) {
	t.Parallel()
	s, store := newTestService(t, false, nil)

	_, err := s.SaveSchedule(context.Background(), schedule.Default())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if store.saves != 0 {
		t.Fatal("unauthorized save reached the store")
	}
}

func TestSaveSchedulePersistFailureKeepsState(t *testing.T) {
	t.Parallel()
	s, store := newTestService(t, true, nil)
	before := s.State().Config

	store.saveErr = errors.New("disk full")
	cfg := before
	cfg.Enabled = !cfg.Enabled
	if _, err := s.SaveSchedule(context.Background(), cfg); err == nil {
		t.Fatal("expected persist error")
	}
	if got := s.State().Config.Enabled; got != before.Enabled {
		t.Fatal("in-memory state advanced despite persist failure")
	}
}

func TestToggleEnabledPersistsImmediately(t *testing.T) {
	t.Parallel()
	s, store := newTestService(t, true, nil)
	before := s.State().Config.Enabled

	snap, err := s.ToggleEnabled(context.Background())
	if err != nil {
		t.Fatalf("ToggleEnabled: %v", err)
	}
	if snap.Config.Enabled == before {
		t.Fatal("enabled flag did not flip")
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d, want 1", store.saves)
	}
}

func TestRunLockDropsConcurrentTest(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	blocking := runner.Func(func(ctx context.Context, models []string) ([]runner.Outcome, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []runner.Outcome{{Model: models[0], Success: true}}, nil
	})
	s, _ := newTestService(t, true, blocking)

	started, err := s.Test(context.Background(), []string{"alpha"})
	if err != nil || !started {
		t.Fatalf("first Test = (%v, %v), want (true, nil)", started, err)
	}
	if !s.State().TestRunning {
		t.Fatal("run-lock not held")
	}

	started, err = s.Test(context.Background(), []string{"alpha"})
	if err != nil {
		t.Fatalf("second Test: %v", err)
	}
	if started {
		t.Fatal("second test started while run-lock held")
	}
	if n := len(s.State().History); n != 0 {
		t.Fatalf("dropped request produced %d history records", n)
	}

	close(release)
	waitFor(t, func() bool { return !s.State().TestRunning })
	if n := len(s.State().History); n != 1 {
		t.Fatalf("history = %d records, want 1", n)
	}
}

func TestRunLockDeadlineAppendsFailedRecord(t *testing.T) {
	t.Parallel()
	hang := make(chan struct{})
	defer close(hang)
	stuck := runner.Func(func(context.Context, []string) ([]runner.Outcome, error) {
		// Ignores ctx on purpose.
		<-hang
		return nil, nil
	})

	store := &memStore{}
	s := New(Config{
		DefaultModel: "default",
		TestDeadline: 20 * time.Millisecond,
	}, auth.NewStatic(true, ""), stuck, store, nil, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := s.Test(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("Test: %v", err)
	}

	waitFor(t, func() bool { return !s.State().TestRunning })
	recs := s.State().History
	if len(recs) != 1 {
		t.Fatalf("history = %d records, want 1", len(recs))
	}
	if recs[0].Success || recs[0].Trigger != history.TriggerManual {
		t.Fatalf("record = %+v, want failed manual", recs[0])
	}
}

func TestTestRequiresAuthorization(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, false, nil)
	if _, err := s.Test(context.Background(), nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestTestUsesCurrentSelectionWhenEmpty(t *testing.T) {
	t.Parallel()
	var got []string
	var mu sync.Mutex
	probe := runner.Func(func(_ context.Context, models []string) ([]runner.Outcome, error) {
		mu.Lock()
		got = append([]string(nil), models...)
		mu.Unlock()
		return []runner.Outcome{{Model: models[0], Success: true}}, nil
	})
	s, _ := newTestService(t, true, probe)

	cfg := schedule.Default()
	cfg.SelectedModels = []string{"alpha", "beta"}
	if _, err := s.SaveSchedule(context.Background(), cfg); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}
	if _, err := s.Test(context.Background(), nil); err != nil {
		t.Fatalf("Test: %v", err)
	}
	waitFor(t, func() bool { return !s.State().TestRunning })

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("probed %v, want [alpha beta]", got)
	}
}

func TestRevokeConfirmationFlow(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, true, nil)

	if _, err := s.ConfirmRevoke(context.Background()); !errors.Is(err, ErrRevokeNotPending) {
		t.Fatalf("confirm without arm: err = %v", err)
	}

	snap := s.Revoke()
	if !snap.RevokePending {
		t.Fatal("revoke not armed")
	}

	snap = s.CancelRevoke()
	if snap.RevokePending {
		t.Fatal("cancel did not disarm")
	}
	if !snap.Auth.Authorized {
		t.Fatal("cancel revoked the credential")
	}

	s.Revoke()
	snap, err := s.ConfirmRevoke(context.Background())
	if err != nil {
		t.Fatalf("ConfirmRevoke: %v", err)
	}
	if snap.Auth.Authorized || snap.RevokePending {
		t.Fatalf("post-revoke snapshot = %+v", snap.Auth)
	}
}

func TestUnrelatedCompletionReleasesRunLock(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	defer close(release)
	blocking := runner.Func(func(ctx context.Context, models []string) ([]runner.Outcome, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	s, _ := newTestService(t, true, blocking)

	if _, err := s.Test(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("Test: %v", err)
	}
	if !s.State().TestRunning {
		t.Fatal("run-lock not held")
	}

	s.append(history.Record{Trigger: history.TriggerAuto, Success: true})
	if s.State().TestRunning {
		t.Fatal("auto completion did not release the run-lock")
	}
}

func TestStartRestoresPersistedState(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	saved := schedule.Default()
	saved.Enabled = true
	saved.SelectedModels = []string{"alpha"}
	store.sched = saved
	store.found = true
	store.records = []history.Record{
		{At: time.Now(), Success: true, Trigger: history.TriggerAuto},
	}

	s := New(Config{DefaultModel: "default"}, auth.NewStatic(true, ""), okRunner(), store, nil, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := s.State()
	if !snap.Config.Enabled {
		t.Fatal("restored schedule lost enabled flag")
	}
	if len(snap.History) != 1 {
		t.Fatalf("restored history = %d records, want 1", len(snap.History))
	}
}

func TestClearHistory(t *testing.T) {
	t.Parallel()
	s, store := newTestService(t, true, nil)
	s.append(history.Record{Trigger: history.TriggerManual, Success: true})
	if len(store.records) != 1 {
		t.Fatalf("store records = %d, want 1", len(store.records))
	}

	snap, err := s.ClearHistory(context.Background())
	if err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if len(snap.History) != 0 || len(store.records) != 0 {
		t.Fatal("history not cleared everywhere")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
