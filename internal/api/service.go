// Package api serves the local HTTP control surface: schedule editing,
// authorization, manual tests, history and a server-sent event stream of
// engine snapshots.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"probed/internal/engine"
	"probed/internal/eventbus"
	"probed/internal/schedule"
	logx "probed/pkg/logx"
)

// Config controls the HTTP control surface.
//
// Security:
//   - Prefer binding to localhost (default).
//   - If binding to a non-loopback address, set Token or enable AllowInsecure.
type Config struct {
	Enabled       bool
	Addr          string
	Token         string
	AllowInsecure bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RatePerSec throttles mutating requests; 0 disables the limiter.
	RatePerSec int
}

// Engine is the control-surface view of the trigger engine.
type Engine interface {
	State() engine.Snapshot
	SaveSchedule(ctx context.Context, cfg schedule.Config) (engine.Snapshot, error)
	ToggleEnabled(ctx context.Context) (engine.Snapshot, error)
	Authorize(ctx context.Context) (engine.Snapshot, error)
	Revoke() engine.Snapshot
	ConfirmRevoke(ctx context.Context) (engine.Snapshot, error)
	CancelRevoke() engine.Snapshot
	Test(ctx context.Context, models []string) (bool, error)
	ClearHistory(ctx context.Context) (engine.Snapshot, error)
	ValidateCrontab(expr string) schedule.CrontabCheck
	Preview(cfg schedule.Config, count int) []time.Time
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	eng Engine
	bus eventbus.Bus

	limiter *rate.Limiter

	ln       net.Listener
	srv      *http.Server
	stopDone chan struct{}
}

func New(cfg Config, eng Engine, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, eng: eng, bus: bus, log: log, limiter: newLimiter(cfg.RatePerSec)}
}

func newLimiter(perSec int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), perSec*2)
}

// Reconfigure applies cfg and starts/stops/restarts the server if needed.
// Safe to call during hot-reload.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) {
	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.limiter = newLimiter(cfg.RatePerSec)
	s.mu.Unlock()

	if !cfg.Enabled {
		if running {
			s.Stop(ctx)
		}
		return
	}
	if !running {
		s.Start(ctx)
		return
	}
	if needsRestart(prev, cfg) {
		s.Stop(ctx)
		s.Start(ctx)
	}
}

func needsRestart(a, b Config) bool {
	if a.Addr != b.Addr || a.Token != b.Token || a.AllowInsecure != b.AllowInsecure {
		return true
	}
	// Timeouts affect server behavior; easiest is restart.
	return a.ReadTimeout != b.ReadTimeout || a.WriteTimeout != b.WriteTimeout || a.IdleTimeout != b.IdleTimeout
}

func (s *Service) Start(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.srv != nil {
			s.mu.Unlock()
			return
		}
		// If stop is in progress, wait for it (avoid double listen).
		if s.stopDone != nil {
			done := s.stopDone
			s.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return
			}
			continue
		}
		cur := s.cfg
		s.mu.Unlock()

		if !cur.Enabled {
			return
		}

		addr := strings.TrimSpace(cur.Addr)
		if addr == "" {
			addr = "127.0.0.1:8787"
		}

		// Safety: prevent accidental public exposure without auth.
		if !cur.AllowInsecure && cur.Token == "" && !isLoopbackAddr(addr) {
			s.log.Error("api refused to start: non-loopback addr requires token or allow_insecure",
				logx.String("addr", addr))
			return
		}
		if cur.AllowInsecure && cur.Token == "" && !isLoopbackAddr(addr) {
			s.log.Warn("api running without token on non-loopback addr (insecure)", logx.String("addr", addr))
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.log.Error("api listen failed", logx.String("addr", addr), logx.Err(err))
			return
		}

		srv := &http.Server{
			Handler:      s.handler(cur),
			ReadTimeout:  cur.ReadTimeout,
			WriteTimeout: cur.WriteTimeout,
			IdleTimeout:  cur.IdleTimeout,
			BaseContext:  func(net.Listener) context.Context { return ctx },
		}

		s.mu.Lock()
		s.ln = ln
		s.srv = srv
		s.mu.Unlock()

		go func() {
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("api server stopped with error", logx.Err(err))
			}
		}()

		s.log.Info("api started",
			logx.String("addr", ln.Addr().String()),
			logx.Bool("token_set", cur.Token != ""))
		return
	}
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.srv == nil {
		s.mu.Unlock()
		return
	}
	// If a stop is already in progress, wait for it.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	// Ensure the listener closes even if Shutdown is stuck.
	if ln != nil {
		_ = ln.Close()
	}

	go func() {
		defer close(done)
		shutdownCtx := ctx
		if shutdownCtx == nil {
			shutdownCtx = context.Background()
		}
		_ = srv.Shutdown(shutdownCtx)
		_ = srv.Close()
		s.mu.Lock()
		s.stopDone = nil
		s.mu.Unlock()
		s.log.Info("api stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Addr reports the bound listen address, or "" when not running.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Service) withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if ah := r.Header.Get("Authorization"); ah != "" {
			const p = "Bearer "
			if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
				h(w, r)
				return
			}
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

// throttled wraps mutating handlers with the request limiter.
func (s *Service) throttled(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		lim := s.limiter
		s.mu.Unlock()
		if lim != nil && !lim.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		h(w, r)
	}
}

func isLoopbackAddr(addr string) bool {
	// addr is expected in host:port (host may be empty).
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// empty host means all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
