package transient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects SQL flavour differences (driver, placeholders, upsert).
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

const tableName = "formcrm_transients"

// SQLStore keeps transients in a single table. Expired rows read as empty and
// a janitor goroutine purges them until Close is called.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// OpenSQLStore opens the database for the dialect, creates the table if
// needed, and purges expired rows every interval. A non-positive interval
// uses 30s.
func OpenSQLStore(ctx context.Context, dialect Dialect, dsn string, interval time.Duration) (*SQLStore, error) {
	driver, err := driverName(dialect)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("transient: %s dsn is required", dialect)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("transient: open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	s := &SQLStore{db: db, dialect: dialect, now: time.Now, closed: make(chan struct{})}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.wg.Add(1)
	go s.janitor(interval)
	return s, nil
}

func driverName(d Dialect) (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite", nil
	case DialectMySQL:
		return "mysql", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("transient: unsupported sql dialect %q", d)
	}
}

func (s *SQLStore) placeholder(idx int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", idx)
	}
	return "?"
}

func (s *SQLStore) migrate(ctx context.Context) error {
	idType := "TEXT"
	if s.dialect == DialectMySQL {
		idType = "VARCHAR(191)"
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	payload TEXT NOT NULL,
	expires_at BIGINT NOT NULL DEFAULT 0
)`, tableName, idType)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("transient: migrate: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Transient, error) {
	query := fmt.Sprintf("SELECT payload, expires_at FROM %s WHERE id = %s", tableName, s.placeholder(1))
	var (
		payload   string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return New(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("transient: get: %w", err)
	}
	if now := s.now().UnixMilli(); expiresAt > 0 && now > expiresAt {
		stmt := fmt.Sprintf("DELETE FROM %s WHERE id = %s AND expires_at > 0 AND expires_at < %s",
			tableName, s.placeholder(1), s.placeholder(2))
		_, _ = s.db.ExecContext(ctx, stmt, id, now)
		return New(id), nil
	}
	return decode(id, []byte(payload))
}

func (s *SQLStore) Save(ctx context.Context, t *Transient, ttl time.Duration) error {
	if t == nil || t.ID == "" {
		return errors.New("transient: id is required")
	}
	data, err := t.encode()
	if err != nil {
		return err
	}
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixMilli()
	}

	var stmt string
	switch s.dialect {
	case DialectMySQL:
		stmt = fmt.Sprintf(`INSERT INTO %s (id, payload, expires_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE payload = VALUES(payload), expires_at = VALUES(expires_at)`, tableName)
	default:
		stmt = fmt.Sprintf(`INSERT INTO %s (id, payload, expires_at) VALUES (%s, %s, %s)
ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
			tableName, s.placeholder(1), s.placeholder(2), s.placeholder(3))
	}
	if _, err := s.db.ExecContext(ctx, stmt, t.ID, string(data), expiresAt); err != nil {
		return fmt.Errorf("transient: save: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = %s", tableName, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, stmt, id); err != nil {
		return fmt.Errorf("transient: delete: %w", err)
	}
	return nil
}

// Purge deletes every expired row and reports how many were removed.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE expires_at > 0 AND expires_at < %s", tableName, s.placeholder(1))
	res, err := s.db.ExecContext(ctx, stmt, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("transient: purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transient: purge: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
	return s.db.Close()
}

func (s *SQLStore) janitor(interval time.Duration) {
	defer s.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-t.C:
			_, _ = s.Purge(context.Background())
		}
	}
}
