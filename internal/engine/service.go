package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"probed/internal/auth"
	"probed/internal/eventbus"
	"probed/internal/history"
	"probed/internal/runner"
	"probed/internal/schedule"
	"probed/internal/storage"
	logx "probed/pkg/logx"
)

type Service struct {
	mu sync.Mutex

	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store // may be nil (persistence disabled)
	authz auth.Authorizer
	run   runner.Runner

	cfg    Config
	sched  schedule.Config
	ledger *history.Ledger

	// Run-lock. testSeq guards against a stale deadline expiry releasing a
	// newer test's lock.
	testing bool
	testSeq uint64

	revokePending bool

	// Base context for async work (manual test goroutines); set by Start.
	baseCtx context.Context

	// Throttles "test request dropped" warnings.
	dropWarn *rate.Limiter

	// now is a test hook.
	now func() time.Time
}

func New(cfg Config, authz auth.Authorizer, run runner.Runner, store storage.Store, bus eventbus.Bus, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:      log,
		bus:      bus,
		store:    store,
		authz:    authz,
		run:      run,
		cfg:      cfg,
		sched:    schedule.Normalize(schedule.Default(), cfg.DefaultModel),
		ledger:   history.New(cfg.HistorySize),
		baseCtx:  context.Background(),
		dropWarn: rate.NewLimiter(rate.Every(10*time.Second), 1),
		now:      time.Now,
	}
	return s
}

// Start restores persisted state and pins the base context for async work.
// It does not launch the autofire worker; see Worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}

	cfg, found, err := s.store.LoadSchedule(ctx)
	if err != nil {
		return err
	}
	records, err := s.store.ListRecords(ctx, s.ledger.Cap())
	if err != nil {
		return err
	}

	s.mu.Lock()
	if found {
		s.sched = schedule.Normalize(cfg, s.cfg.DefaultModel)
	}
	s.ledger.Replace(records)
	s.mu.Unlock()

	s.log.Info("engine state restored",
		logx.Bool("schedule_found", found),
		logx.Int("history", len(records)))
	s.publish()
	return nil
}

// append records a trigger outcome and releases a pending run-lock: any
// fresh execution result means the prior test is no longer outstanding.
// Caller must NOT hold s.mu.
func (s *Service) append(r history.Record) {
	s.mu.Lock()
	s.ledger.Append(r)
	released := s.testing
	s.testing = false
	s.mu.Unlock()

	if released && r.Trigger == history.TriggerAuto {
		s.log.Debug("run-lock released by unrelated execution result")
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.AppendRecord(ctx, r); err != nil {
			s.log.Warn("history persist failed", logx.Err(err))
		}
		cancel()
	}
	s.publish()
}

// persistSchedule writes the current config. Caller must NOT hold s.mu.
func (s *Service) persistSchedule(ctx context.Context, cfg schedule.Config) error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveSchedule(ctx, cfg)
}

func (s *Service) publish() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Topic: eventbus.TopicSnapshot, Data: s.State()})
}
