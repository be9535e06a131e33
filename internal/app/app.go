// Package app wires the config manager, logging service, event bus, storage,
// credential backend, prober, trigger engine and the HTTP control surface
// into one runnable daemon.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"probed/internal/api"
	"probed/internal/auth"
	"probed/internal/config"
	"probed/internal/engine"
	"probed/internal/eventbus"
	"probed/internal/runner"
	"probed/internal/storage"
	logx "probed/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	eng *engine.Service
	api *api.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		if st != nil {
			store = st
			log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
		}
	}

	authz := auth.NewFileCredentials(cfg.Auth.CredentialsPath)

	prober := runner.NewHTTPProber(runner.Config{
		Endpoint: cfg.Runner.Endpoint,
		Prompt:   cfg.Engine.Prompt,
		Timeout:  cfg.Runner.TimeoutOrDefault(),
	}, log.With(logx.String("comp", "runner")))

	eng := engine.New(engine.Config{
		HistorySize:     cfg.Engine.HistorySize,
		TestDeadline:    cfg.Engine.TestDeadlineOrDefault(),
		DefaultModel:    cfg.Engine.DefaultModel,
		AvailableModels: cfg.Engine.AvailableModels,
		Prompt:          cfg.Engine.Prompt,
		PreviewCount:    cfg.Engine.PreviewCount,
	}, authz, prober, store, bus, log.With(logx.String("comp", "engine")))

	apiSvc := api.New(mapAPIConfig(cfg), eng, bus, log.With(logx.String("comp", "api")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		eng:     eng,
		api:     apiSvc,
	}, nil
}

func mapAPIConfig(cfg *config.Config) api.Config {
	rd, _ := config.ParseDurationField("api.read_timeout", cfg.API.ReadTimeout)
	wr, _ := config.ParseDurationField("api.write_timeout", cfg.API.WriteTimeout)
	idle, _ := config.ParseDurationOrDefault("api.idle_timeout", cfg.API.IdleTimeout, time.Minute)
	return api.Config{
		Enabled:       cfg.API.Enabled,
		Addr:          cfg.API.Addr,
		Token:         cfg.API.Token,
		AllowInsecure: cfg.API.AllowInsecure,
		ReadTimeout:   rd,
		WriteTimeout:  wr,
		IdleTimeout:   idle,
		RatePerSec:    cfg.API.RatePerSec,
	}
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// Pick up the last known credential state before the first fire check.
	if _, err := a.eng.Authorize(runCtx); err != nil {
		a.log.Info("starting unauthorized", logx.Err(err))
	}

	if err := a.eng.Start(runCtx); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.eng.Worker(runCtx)
	}()

	a.api.Start(runCtx)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyReload(runCtx, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	}()

	a.log.Info("probed started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) applyReload(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(logx.Config{
				Level:   newCfg.Logging.Level,
				Console: newCfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: newCfg.Logging.File.Enabled,
					Path:    newCfg.Logging.File.Path,
				},
			})
		case "api":
			a.api.Reconfigure(ctx, mapAPIConfig(newCfg))
		case "storage", "engine", "runner", "auth":
			// These shape constructor wiring; applying them live would swap
			// components under the engine.
			a.log.Warn("config section changed; restart required for changes to take effect",
				logx.String("section", s))
		}
	}
}

// Stop shuts the daemon down; it blocks until background loops exit.
func (a *App) Stop(ctx context.Context) error {
	a.api.Stop(ctx)
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("probed stopped")
	_ = a.logs.Close()
	return nil
}
