//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"probed/internal/history"
	"probed/internal/schedule"
	logx "probed/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

// sqlitePruneKeep bounds how many history rows survive a prune pass.
const sqlitePruneKeep = 500

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, pruneEvery: 200}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SaveSchedule(ctx context.Context, cfg schedule.Config) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schedule(id, config, updated_at) VALUES(1,?,?)
		 ON CONFLICT(id) DO UPDATE SET config=excluded.config, updated_at=excluded.updated_at`,
		string(b), time.Now().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) LoadSchedule(ctx context.Context) (schedule.Config, bool, error) {
	if s == nil || s.db == nil {
		return schedule.Config{}, false, ErrDisabled
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM schedule WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Config{}, false, nil
	}
	if err != nil {
		return schedule.Config{}, false, err
	}
	var cfg schedule.Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return schedule.Config{}, false, err
	}
	return cfg, true, nil
}

func (s *sqliteStore) AppendRecord(ctx context.Context, r history.Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trigger_history(at, success, trigger_type, prompt, message, duration_ms)
		 VALUES(?,?,?,?,?,?)`,
		r.At.Format(time.RFC3339Nano), boolInt(r.Success), string(r.Trigger),
		nullStr(r.Prompt), nullStr(r.Message), r.DurationMS,
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = s.pruneOld(pctx)
		cancel()
	}
	return err
}

func (s *sqliteStore) ListRecords(ctx context.Context, limit int) ([]history.Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = sqlitePruneKeep
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, success, trigger_type, prompt, message, duration_ms
		 FROM trigger_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []history.Record
	for rows.Next() {
		var (
			at      string
			success int
			trig    string
			prompt  sql.NullString
			message sql.NullString
			durMS   sql.NullInt64
		)
		if err := rows.Scan(&at, &success, &trig, &prompt, &message, &durMS); err != nil {
			return nil, err
		}
		r := history.Record{
			Success: success != 0,
			Trigger: history.TriggerType(trig),
			Prompt:  prompt.String,
			Message: message.String,
		}
		if durMS.Valid {
			r.DurationMS = durMS.Int64
		}
		if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
			r.At = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ClearRecords(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM trigger_history`)
	return err
}

func (s *sqliteStore) pruneOld(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM trigger_history WHERE id NOT IN
		 (SELECT id FROM trigger_history ORDER BY id DESC LIMIT ?)`, sqlitePruneKeep)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
