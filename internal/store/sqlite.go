package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sunbk201/xlink/internal/config"
)

const DefaultPollInterval = time.Second

// SQLiteStore keeps one JSON encoded value per settings key. Other processes
// sharing the database are picked up by polling.
type SQLiteStore struct {
	listeners

	db   *sql.DB
	path string

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	cur    config.Settings
	closed bool
}

// OpenSQLite opens or creates the database at path with WAL mode and a busy
// timeout of 5 seconds. A poll interval of zero disables change polling.
func OpenSQLite(path string, seed config.Settings, poll time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	ddl := `CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create table: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, done: make(chan struct{})}
	if err := s.seed(seed); err != nil {
		db.Close()
		return nil, err
	}
	if s.cur, err = s.load(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if poll > 0 {
		go s.poll(ctx, poll)
	} else {
		close(s.done)
	}
	return s, nil
}

func (s *SQLiteStore) Path() string {
	return s.path
}

// seed writes every key into an empty table, or only an empty rule list when
// the table predates custom rules.
func (s *SQLiteStore) seed(seed config.Settings) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&n); err != nil {
		return fmt.Errorf("store: count settings: %w", err)
	}
	if n == 0 {
		slog.Info("Seed settings database", slog.String("path", s.path))
		return s.write(context.Background(), seed.Normalize(), []string{
			config.KeyRewriteMode, config.KeyNitterInstance, config.KeyCustomRewrites,
		})
	}

	err := s.db.QueryRow(`SELECT COUNT(*) FROM settings WHERE key = ?`, config.KeyCustomRewrites).Scan(&n)
	if err != nil {
		return fmt.Errorf("store: count settings: %w", err)
	}
	if n > 0 {
		return nil
	}
	slog.Info("Migrate settings database", slog.String("path", s.path), slog.String("key", config.KeyCustomRewrites))
	return s.write(context.Background(), config.Settings{CustomRewrites: []config.Rule{}}, []string{config.KeyCustomRewrites})
}

func (s *SQLiteStore) load(ctx context.Context) (config.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return config.Settings{}, fmt.Errorf("store: list settings: %w", err)
	}
	defer rows.Close()

	var settings config.Settings
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return config.Settings{}, fmt.Errorf("store: scan settings: %w", err)
		}

		var dst any
		switch key {
		case config.KeyRewriteMode:
			dst = &settings.RewriteMode
		case config.KeyNitterInstance:
			dst = &settings.NitterInstance
		case config.KeyCustomRewrites:
			dst = &settings.CustomRewrites
		default:
			continue
		}
		if err := json.Unmarshal([]byte(value), dst); err != nil {
			slog.Warn("Ignore malformed setting", slog.String("key", key), slog.Any("error", err))
		}
	}
	if err := rows.Err(); err != nil {
		return config.Settings{}, fmt.Errorf("store: rows settings: %w", err)
	}
	return settings.Normalize(), nil
}

func (s *SQLiteStore) write(ctx context.Context, settings config.Settings, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, key := range keys {
		var value any
		switch key {
		case config.KeyRewriteMode:
			value = settings.RewriteMode
		case config.KeyNitterInstance:
			value = settings.NitterInstance
		case config.KeyCustomRewrites:
			value = settings.CustomRewrites
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("store: marshal %s: %w", key, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
			key, string(data), now,
		)
		if err != nil {
			return fmt.Errorf("store: set %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context) (config.Settings, error) {
	if err := ctx.Err(); err != nil {
		return config.Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return config.Settings{}, ErrClosed
	}
	return s.cur.Clone(), nil
}

func (s *SQLiteStore) Set(ctx context.Context, p config.Patch) error {
	if p.Empty() {
		return ctx.Err()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	next := s.cur.Apply(p)
	changed := config.ChangedKeys(s.cur, next)
	if len(changed) == 0 {
		s.mu.Unlock()
		return nil
	}
	if err := s.write(ctx, next, changed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cur = next
	s.mu.Unlock()

	s.notify(changed)
	return nil
}

func (s *SQLiteStore) poll(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *SQLiteStore) refresh(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	next, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		if ctx.Err() == nil {
			slog.Warn("Poll settings database", slog.String("path", s.path), slog.Any("error", err))
		}
		return
	}
	changed := config.ChangedKeys(s.cur, next)
	s.cur = next
	s.mu.Unlock()

	if len(changed) > 0 {
		slog.Info("Settings database changed", slog.String("path", s.path), slog.Any("keys", changed))
	}
	s.notify(changed)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	return s.db.Close()
}
