package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"probed/internal/history"
	"probed/internal/runner"
	"probed/internal/schedule"
	logx "probed/pkg/logx"
)

var (
	ErrUnauthorized     = errors.New("not authorized")
	ErrRevokeNotPending = errors.New("no revoke pending")
)

// State builds an immutable snapshot of the current engine state.
func (s *Service) State() Snapshot {
	s.mu.Lock()
	cfg := s.sched
	testing := s.testing
	pending := s.revokePending
	previewCount := s.cfg.PreviewCount
	models := append([]string(nil), s.cfg.AvailableModels...)
	s.mu.Unlock()

	snap := Snapshot{
		Config:          cfg,
		Auth:            s.authz.Current(),
		History:         s.ledger.List(),
		AvailableModels: models,
		TestRunning:     testing,
		RevokePending:   pending,
	}

	// Never persisted: always recomputed from the current config and instant.
	upcoming := schedule.Next(cfg, s.now(), previewCount)
	if len(upcoming) > 0 {
		next := upcoming[0]
		snap.NextFire = &next
		snap.Upcoming = upcoming
	}
	return snap
}

// Preview computes upcoming fire times for an arbitrary candidate config
// without touching stored state (live preview while editing).
func (s *Service) Preview(cfg schedule.Config, count int) []time.Time {
	return schedule.Next(cfg, s.now(), count)
}

// ValidateCrontab reports whether expr would produce any future candidate.
func (s *Service) ValidateCrontab(expr string) schedule.CrontabCheck {
	return schedule.ValidateCrontab(expr, s.now())
}

// SaveSchedule replaces the stored config atomically (whole-object replace).
// An empty target selection is substituted with the default target, not
// rejected. On persistence failure the in-memory state does not advance.
func (s *Service) SaveSchedule(ctx context.Context, cfg schedule.Config) (Snapshot, error) {
	if !s.authz.Current().Authorized {
		return s.State(), ErrUnauthorized
	}

	s.mu.Lock()
	next := schedule.Normalize(cfg, s.cfg.DefaultModel)
	s.mu.Unlock()

	if err := s.persistSchedule(ctx, next); err != nil {
		return s.State(), err
	}

	s.mu.Lock()
	s.sched = next
	s.mu.Unlock()

	s.log.Info("schedule saved",
		logx.Bool("enabled", next.Enabled),
		logx.String("mode", string(next.RepeatMode)),
		logx.Bool("cron_override", next.CronActive()),
		logx.Int("targets", len(next.SelectedModels)))
	s.publish()
	return s.State(), nil
}

// ToggleEnabled flips the enabled flag and persists immediately.
func (s *Service) ToggleEnabled(ctx context.Context) (Snapshot, error) {
	if !s.authz.Current().Authorized {
		return s.State(), ErrUnauthorized
	}

	s.mu.Lock()
	next := s.sched
	next.Enabled = !next.Enabled
	s.mu.Unlock()

	if err := s.persistSchedule(ctx, next); err != nil {
		return s.State(), err
	}

	s.mu.Lock()
	s.sched = next
	s.mu.Unlock()

	s.log.Info("trigger toggled", logx.Bool("enabled", next.Enabled))
	s.publish()
	return s.State(), nil
}

// Authorize delegates to the credential collaborator. On failure the state
// does not advance; retrying is safe.
func (s *Service) Authorize(ctx context.Context) (Snapshot, error) {
	state, err := s.authz.Authorize(ctx)
	if err != nil {
		s.log.Warn("authorize failed", logx.Err(err))
		return s.State(), err
	}
	s.log.Info("authorized", logx.String("email", state.Email))
	s.publish()
	return s.State(), nil
}

// Revoke arms the confirmation sub-state; nothing is revoked yet.
func (s *Service) Revoke() Snapshot {
	s.mu.Lock()
	if s.authz.Current().Authorized {
		s.revokePending = true
	}
	s.mu.Unlock()
	s.publish()
	return s.State()
}

// ConfirmRevoke performs the revoke armed by Revoke.
func (s *Service) ConfirmRevoke(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	pending := s.revokePending
	s.mu.Unlock()
	if !pending {
		return s.State(), ErrRevokeNotPending
	}

	if err := s.authz.Revoke(ctx); err != nil {
		return s.State(), err
	}

	s.mu.Lock()
	s.revokePending = false
	s.mu.Unlock()

	s.log.Info("authorization revoked")
	s.publish()
	return s.State(), nil
}

// CancelRevoke disarms the confirmation sub-state; no other state changes.
func (s *Service) CancelRevoke() Snapshot {
	s.mu.Lock()
	s.revokePending = false
	s.mu.Unlock()
	s.publish()
	return s.State()
}

// Test launches a manual test run for the given targets (the current
// selection when models is empty).
//
// The run-lock is a boolean guard, not a queue: a request while a test is
// already in flight is dropped silently and reports started=false.
func (s *Service) Test(ctx context.Context, models []string) (started bool, err error) {
	_ = ctx // the run outlives the request; it uses the engine's base context

	if !s.authz.Current().Authorized {
		return false, ErrUnauthorized
	}

	s.mu.Lock()
	if s.testing {
		s.mu.Unlock()
		if s.dropWarn.Allow() {
			s.log.Warn("test request dropped: already running")
		}
		return false, nil
	}
	s.testing = true
	s.testSeq++
	seq := s.testSeq
	if len(models) == 0 {
		models = append([]string(nil), s.sched.SelectedModels...)
	}
	deadline := s.cfg.TestDeadline
	base := s.baseCtx
	s.mu.Unlock()

	s.log.Info("manual test started", logx.Int("targets", len(models)))
	s.publish()

	go s.runTest(base, seq, models, deadline)
	time.AfterFunc(deadline, func() { s.expireTest(seq) })
	return true, nil
}

func (s *Service) runTest(base context.Context, seq uint64, models []string, deadline time.Duration) {
	ctx, cancel := context.WithTimeout(base, deadline)
	defer cancel()

	start := s.now()
	outcomes, err := s.run.Run(ctx, models)

	if !s.releaseTest(seq) {
		// The deadline watchdog (or an unrelated execution result) already
		// released the lock; don't double-append.
		s.log.Debug("test result arrived after run-lock release")
		return
	}
	s.append(s.buildRecord(history.TriggerManual, start, outcomes, err))
}

// releaseTest clears the run-lock iff it still belongs to test seq. Exactly
// one of the result path and the deadline watchdog wins.
func (s *Service) releaseTest(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.testing || s.testSeq != seq {
		return false
	}
	s.testing = false
	return true
}

// expireTest force-clears the run-lock for a test that never reported back,
// appending a failed record.
func (s *Service) expireTest(seq uint64) {
	if !s.releaseTest(seq) {
		return
	}
	s.log.Warn("manual test deadline exceeded; releasing run-lock")
	s.append(history.Record{
		At:      s.now(),
		Success: false,
		Trigger: history.TriggerManual,
		Message: "test timed out",
	})
}

// ClearHistory empties the ledger.
func (s *Service) ClearHistory(ctx context.Context) (Snapshot, error) {
	s.ledger.Clear()
	if s.store != nil {
		if err := s.store.ClearRecords(ctx); err != nil {
			return s.State(), err
		}
	}
	s.log.Info("history cleared")
	s.publish()
	return s.State(), nil
}

// buildRecord folds per-target outcomes into one trigger record.
func (s *Service) buildRecord(trig history.TriggerType, start time.Time, outcomes []runner.Outcome, runErr error) history.Record {
	r := history.Record{
		At:         start,
		Trigger:    trig,
		Prompt:     s.cfg.Prompt,
		DurationMS: s.now().Sub(start).Milliseconds(),
	}

	if runErr != nil {
		r.Message = runErr.Error()
		return r
	}

	ok := 0
	var failed []string
	for _, o := range outcomes {
		if o.Success {
			ok++
		} else {
			failed = append(failed, o.Model)
		}
	}
	r.Success = len(outcomes) > 0 && ok == len(outcomes)
	if r.Success {
		r.Message = "all targets ok"
	} else if len(failed) > 0 {
		r.Message = "failed: " + strings.Join(failed, ", ")
	} else {
		r.Message = "no targets probed"
	}
	return r
}
