package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// SQLite is the persistent L3 tier, backed by a relational table. It
// survives process restarts when given a file path. Expired rows are
// deleted lazily on read and swept by a background goroutine.
type SQLite struct {
	db        *sql.DB
	table     string
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Tier = (*SQLite)(nil)

// NewSQLite returns a new SQLite-backed tier. If dbPath is empty or
// ":memory:", an in-memory database is used.
func NewSQLite(parent context.Context, dbPath string, opts ...Option) (*SQLite, error) {
	cfg := applyOptions(opts)
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite open")
	}

	// WAL mode for concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite journal mode")
	}

	table := cfg.table
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`, table)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite create table")
	}

	if _, err := db.Exec(fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at)`, table, table,
	)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite create index")
	}

	ctx, cancel := context.WithCancel(parent)
	s := &SQLite{
		db:     db,
		table:  table,
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}

	s.waitGroup.Add(1)
	go s.run()

	return s, nil
}

func (s *SQLite) Name() string { return "l3" }

func (s *SQLite) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *SQLite) Get(ctx context.Context, key string) (bool, []byte, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	now := time.Now().UnixNano()
	var data []byte
	var expiresAt int64
	err := s.db.QueryRowContext(qctx,
		fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE key = ?`, s.table), key,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errors.Mark(errors.Wrap(err, "sqlite get"), ErrTierUnavailable)
	}

	if expiresAt < now {
		// Lazily delete the expired row.
		_, _ = s.db.ExecContext(qctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table), key)
		return false, nil, nil
	}

	return true, data, nil
}

func (s *SQLite) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.defaultTTL
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	expiresAt := time.Now().Add(ttl).UnixNano()
	_, err := s.db.ExecContext(qctx, fmt.Sprintf(
		`INSERT INTO %s (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		s.table,
	), key, data, expiresAt)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "sqlite set"), ErrTierUnavailable)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) (bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(qctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table), key)
	if err != nil {
		return false, errors.Mark(errors.Wrap(err, "sqlite delete"), ErrTierUnavailable)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "sqlite rows affected")
	}
	return rows > 0, nil
}

// DeletePattern translates the glob into a LIKE expression. The relational
// tier reports only the affected row count — it does not enumerate keys.
func (s *SQLite) DeletePattern(ctx context.Context, pattern string) ([]string, int, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(qctx, fmt.Sprintf(
		`DELETE FROM %s WHERE key LIKE ? ESCAPE '\'`, s.table,
	), globToLike(pattern))
	if err != nil {
		return nil, 0, errors.Mark(errors.Wrap(err, "sqlite pattern delete"), ErrTierUnavailable)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, 0, errors.Wrap(err, "sqlite rows affected")
	}
	return nil, int(rows), nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if err := s.db.PingContext(qctx); err != nil {
		return errors.Mark(errors.Wrap(err, "sqlite ping"), ErrTierUnavailable)
	}
	return nil
}

func (s *SQLite) Close() error {
	var dbErr error
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
		dbErr = s.db.Close()
	})
	return dbErr
}

func (s *SQLite) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UnixNano()
			_, _ = s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE expires_at < ?`, s.table), now)
		}
	}
}
