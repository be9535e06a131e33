package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"probed/internal/history"
	"probed/internal/schedule"
	logx "probed/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.schedule.json  (whole-config snapshot, atomic replace)
//   - <prefix>.history.jsonl  (append-only journal, most-recent-last)
//
// The journal is periodically compacted so it does not grow unbounded; the
// in-memory copy is authoritative between compactions.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	schedulePath string

	historyPath string
	historyFile *os.File
	records     []history.Record // most-recent-first
	writes      int
}

// compactKeep bounds how many journal records survive a compaction. It is
// deliberately larger than any engine-side retention cap.
const compactKeep = 500

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		schedulePath: prefix + ".schedule.json",
		historyPath:  prefix + ".history.jsonl",
	}

	records, err := readHistoryJournal(s.historyPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	s.records = records

	hf, err := os.OpenFile(s.historyPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.historyFile = hf
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile != nil {
		err := s.historyFile.Close()
		s.historyFile = nil
		return err
	}
	return nil
}

func (s *fileStore) SaveSchedule(ctx context.Context, cfg schedule.Config) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.schedulePath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.schedulePath)
}

func (s *fileStore) LoadSchedule(ctx context.Context) (schedule.Config, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.schedulePath)
	if errors.Is(err, os.ErrNotExist) {
		return schedule.Config{}, false, nil
	}
	if err != nil {
		return schedule.Config{}, false, err
	}
	defer f.Close()

	var cfg schedule.Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return schedule.Config{}, false, err
	}
	return cfg, true, nil
}

func (s *fileStore) AppendRecord(ctx context.Context, r history.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return errors.New("history journal closed")
	}

	s.records = append([]history.Record{r}, s.records...)
	if len(s.records) > compactKeep {
		s.records = s.records[:compactKeep]
	}

	if err := json.NewEncoder(s.historyFile).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%1000 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("history compact failed", logx.Any("err", err))
		}
	}
	return nil
}

func (s *fileStore) ListRecords(ctx context.Context, limit int) ([]history.Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]history.Record(nil), s.records...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fileStore) ClearRecords(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return s.truncateJournalLocked()
}

// compactLocked rewrites the journal with only the retained records.
func (s *fileStore) compactLocked() error {
	if err := s.truncateJournalLocked(); err != nil {
		return err
	}
	enc := json.NewEncoder(s.historyFile)
	// Journal order is oldest-first so replay rebuilds most-recent-first.
	for i := len(s.records) - 1; i >= 0; i-- {
		if err := enc.Encode(s.records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) truncateJournalLocked() error {
	if s.historyFile == nil {
		return errors.New("history journal closed")
	}
	if err := s.historyFile.Truncate(0); err != nil {
		return err
	}
	_, err := s.historyFile.Seek(0, 0)
	return err
}

func readHistoryJournal(path string) ([]history.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []history.Record // most-recent-first
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r history.Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		out = append([]history.Record{r}, out...)
		if len(out) > compactKeep {
			out = out[:compactKeep]
		}
	}
	return out, sc.Err()
}
