// Package runner is the execution collaborator: it performs the actual
// trigger action against the selected targets. The engine only consumes
// outcomes; it never retries or serializes the underlying work.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "probed/pkg/logx"
)

// Outcome is one target's result.
type Outcome struct {
	Model    string        `json:"model"`
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Runner executes a trigger against the given targets.
type Runner interface {
	Run(ctx context.Context, models []string) ([]Outcome, error)
}

// Func adapts a plain function to Runner (handy in tests).
type Func func(ctx context.Context, models []string) ([]Outcome, error)

func (f Func) Run(ctx context.Context, models []string) ([]Outcome, error) {
	return f(ctx, models)
}

// Config for the HTTP prober.
type Config struct {
	Endpoint string
	Prompt   string
	Timeout  time.Duration // per-probe; 0 means 30s
}

// HTTPProber probes each target with one POST to the configured endpoint.
type HTTPProber struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
}

func NewHTTPProber(cfg Config, log logx.Logger) *HTTPProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTPProber{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type probeRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt,omitempty"`
}

func (p *HTTPProber) Run(ctx context.Context, models []string) ([]Outcome, error) {
	if strings.TrimSpace(p.cfg.Endpoint) == "" {
		return nil, fmt.Errorf("runner endpoint not configured")
	}

	out := make([]Outcome, 0, len(models))
	for _, model := range models {
		out = append(out, p.probeOne(ctx, model))
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
	}
	return out, nil
}

func (p *HTTPProber) probeOne(ctx context.Context, model string) Outcome {
	start := time.Now()
	o := Outcome{Model: model}

	body, err := json.Marshal(probeRequest{Model: model, Prompt: p.cfg.Prompt})
	if err != nil {
		o.Message = err.Error()
		return o
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		o.Message = err.Error()
		return o
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	o.Duration = time.Since(start)
	if err != nil {
		o.Message = err.Error()
		p.log.Debug("probe failed", logx.String("model", model), logx.Err(err))
		return o
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	o.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !o.Success {
		o.Message = resp.Status
	}
	return o
}
