package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"probed/internal/engine"
	"probed/internal/eventbus"
	"probed/internal/schedule"
)

func (s *Service) handler(cfg Config) http.Handler {
	mux := http.NewServeMux()

	wrap := func(h http.HandlerFunc) http.HandlerFunc { return s.withAuth(cfg.Token, h) }
	mutate := func(h http.HandlerFunc) http.HandlerFunc { return wrap(s.throttled(h)) }

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /v1/state", wrap(s.handleState))
	mux.HandleFunc("PUT /v1/schedule", mutate(s.handleSaveSchedule))
	mux.HandleFunc("POST /v1/schedule/toggle", mutate(s.handleToggle))
	mux.HandleFunc("POST /v1/auth/authorize", mutate(s.handleAuthorize))
	mux.HandleFunc("POST /v1/auth/revoke", mutate(s.handleRevoke))
	mux.HandleFunc("POST /v1/auth/revoke/confirm", mutate(s.handleConfirmRevoke))
	mux.HandleFunc("POST /v1/auth/revoke/cancel", mutate(s.handleCancelRevoke))
	mux.HandleFunc("POST /v1/test", mutate(s.handleTest))
	mux.HandleFunc("POST /v1/history/clear", mutate(s.handleClearHistory))
	mux.HandleFunc("POST /v1/crontab/validate", wrap(s.handleValidateCrontab))
	mux.HandleFunc("POST /v1/preview", wrap(s.handlePreview))
	mux.HandleFunc("GET /v1/events", wrap(s.handleEvents))

	return mux
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.State())
}

func (s *Service) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	var cfg schedule.Config
	if !decodeBody(w, r, &cfg) {
		return
	}
	snap, err := s.eng.SaveSchedule(r.Context(), cfg)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleToggle(w http.ResponseWriter, r *http.Request) {
	snap, err := s.eng.ToggleEnabled(r.Context())
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	snap, err := s.eng.Authorize(r.Context())
	if err != nil {
		// Authorization failure is an expected outcome, not a server error.
		writeJSON(w, http.StatusOK, struct {
			engine.Snapshot
			Error string `json:"error"`
		}{snap, err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleRevoke(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Revoke())
}

func (s *Service) handleConfirmRevoke(w http.ResponseWriter, r *http.Request) {
	snap, err := s.eng.ConfirmRevoke(r.Context())
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleCancelRevoke(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.CancelRevoke())
}

type testRequest struct {
	Models []string `json:"models,omitempty"`
}

type testResponse struct {
	Started bool `json:"started"`
}

func (s *Service) handleTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	started, err := s.eng.Test(r.Context(), req.Models)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	// started=false means the run-lock dropped the request; still 200.
	writeJSON(w, http.StatusOK, testResponse{Started: started})
}

func (s *Service) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	snap, err := s.eng.ClearHistory(r.Context())
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type validateRequest struct {
	Crontab string `json:"crontab"`
}

func (s *Service) handleValidateCrontab(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.eng.ValidateCrontab(req.Crontab))
}

func (s *Service) handlePreview(w http.ResponseWriter, r *http.Request) {
	var cfg schedule.Config
	if !decodeBody(w, r, &cfg) {
		return
	}
	count := 5
	if q := r.URL.Query().Get("count"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 50 {
			http.Error(w, "count must be 1..50", http.StatusBadRequest)
			return
		}
		count = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"upcoming": s.eng.Preview(cfg, count),
	})
}

// handleEvents streams engine snapshots as server-sent events. The current
// state is sent immediately so clients never start blind.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok || s.bus == nil {
		http.Error(w, "streaming unsupported", http.StatusNotImplemented)
		return
	}

	ch, unsub := s.bus.Subscribe(8)
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(v any) bool {
		b, err := json.Marshal(v)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", b); err != nil {
			return false
		}
		fl.Flush()
		return true
	}

	if !send(s.eng.State()) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Topic != eventbus.TopicSnapshot {
				continue
			}
			if !send(ev.Data) {
				return
			}
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEngineErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrRevokeNotPending):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
