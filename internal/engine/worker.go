package engine

import (
	"context"
	"time"

	"probed/internal/eventbus"
	"probed/internal/history"
	"probed/internal/schedule"
	logx "probed/pkg/logx"
)

// maxSleep caps the timer so config edits that somehow miss the bus wake
// still get picked up.
const maxSleep = time.Hour

// Worker runs the autofire loop until ctx is done. It sleeps until the next
// computed fire time, re-arming whenever a snapshot is published (schedule
// edits, toggles, auth changes all move the next fire).
func (s *Service) Worker(ctx context.Context) {
	var wake <-chan eventbus.Event
	if s.bus != nil {
		ch, unsub := s.bus.Subscribe(8)
		defer unsub()
		wake = ch
	}

	timer := time.NewTimer(maxSleep)
	defer timer.Stop()

	for {
		next, armed := s.nextAutoFire()

		d := maxSleep
		if armed {
			if until := next.Sub(s.now()); until < d {
				d = until
			}
			if d < 0 {
				d = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d)

		select {
		case <-ctx.Done():
			return
		case <-wake:
			// Re-arm against the fresh state.
		case <-timer.C:
			if !armed {
				continue
			}
			// The timer can fire a hair early; only trigger once the
			// computed instant has actually passed.
			if s.now().Before(next) {
				continue
			}
			s.autoFire(ctx, next)
		}
	}
}

// nextAutoFire reports the next scheduled fire, or armed=false when the
// trigger is disabled, unauthorized, or the schedule yields no candidate.
func (s *Service) nextAutoFire() (next time.Time, armed bool) {
	s.mu.Lock()
	cfg := s.sched
	s.mu.Unlock()

	if !cfg.Enabled || !s.authz.Current().Authorized {
		return time.Time{}, false
	}
	return schedule.NextFire(cfg, s.now())
}

func (s *Service) autoFire(ctx context.Context, at time.Time) {
	s.mu.Lock()
	models := append([]string(nil), s.sched.SelectedModels...)
	deadline := s.cfg.TestDeadline
	s.mu.Unlock()

	s.log.Info("scheduled trigger firing",
		logx.Time("at", at),
		logx.Int("targets", len(models)))

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := s.now()
	outcomes, err := s.run.Run(runCtx, models)
	rec := s.buildRecord(history.TriggerAuto, start, outcomes, err)
	s.append(rec)

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Topic: eventbus.TopicTriggerDone, Data: rec})
	}
}
