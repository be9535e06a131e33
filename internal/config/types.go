package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Engine controls the trigger state machine.
	Engine EngineConfig `json:"engine"`

	// Runner controls the probe executor.
	Runner RunnerConfig `json:"runner"`

	Auth    AuthConfig     `json:"auth"`
	Storage *StorageConfig `json:"storage,omitempty"`
	API     APIConfig      `json:"api"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig controls the trigger engine.
//
// All durations are Go duration strings (e.g. "30s", "2m").
//
// Defaults (when fields are omitted/zero):
//   - history_size: 50
//   - test_deadline: "2m"
//   - default_model: "default"
//   - preview_count: 5
type EngineConfig struct {
	HistorySize int `json:"history_size,omitempty"`

	// TestDeadline force-clears a stuck manual test run.
	TestDeadline string `json:"test_deadline,omitempty"`

	DefaultModel    string   `json:"default_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty"`
	Prompt          string   `json:"prompt,omitempty"`
	PreviewCount    int      `json:"preview_count,omitempty"`
}

// RunnerConfig controls the HTTP prober.
type RunnerConfig struct {
	Endpoint string `json:"endpoint"`
	// Timeout is a Go duration string; per-probe. Default "30s".
	Timeout string `json:"timeout,omitempty"`
}

// AuthConfig points at the credential file maintained by the external
// sign-in flow.
type AuthConfig struct {
	CredentialsPath string `json:"credentials_path"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./probed_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// APIConfig controls the local HTTP control surface.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8787").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type APIConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8787"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0
	// (disabled) so the SSE event stream is not cut off.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// RatePerSec throttles mutating requests; 0 disables the limiter.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// Validate checks cross-field constraints and duration syntax. It never
// mutates cfg; callers read effective values through the helpers below.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	for _, f := range []struct{ path, raw string }{
		{"engine.test_deadline", cfg.Engine.TestDeadline},
		{"runner.timeout", cfg.Runner.Timeout},
		{"api.read_timeout", cfg.API.ReadTimeout},
		{"api.write_timeout", cfg.API.WriteTimeout},
		{"api.idle_timeout", cfg.API.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if cfg.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}

	if cfg.Engine.HistorySize < 0 {
		return errors.New("engine.history_size must be >= 0")
	}
	if cfg.Engine.PreviewCount < 0 {
		return errors.New("engine.preview_count must be >= 0")
	}

	if cfg.API.Enabled {
		addr := strings.TrimSpace(cfg.API.Addr)
		if addr == "" {
			addr = DefaultAPIAddr
		}
		if !isLoopbackAddr(addr) && strings.TrimSpace(cfg.API.Token) == "" && !cfg.API.AllowInsecure {
			return fmt.Errorf("api.addr %q is not loopback; set api.token or api.allow_insecure", addr)
		}
	}
	return nil
}

const DefaultAPIAddr = "127.0.0.1:8787"

func isLoopbackAddr(addr string) bool {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	host = strings.Trim(host, "[]")
	switch host {
	case "localhost", "::1":
		return true
	}
	return strings.HasPrefix(host, "127.")
}

// TestDeadlineOrDefault returns the effective engine test deadline.
func (e EngineConfig) TestDeadlineOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("engine.test_deadline", e.TestDeadline, 2*time.Minute)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// TimeoutOrDefault returns the effective per-probe timeout.
func (r RunnerConfig) TimeoutOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("runner.timeout", r.Timeout, 30*time.Second)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
