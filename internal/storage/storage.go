package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"modbot/pkg/logx"
)

var (
	//go:embed schema_postgres.sql
	schemaPostgres string
	//go:embed schema_sqlite.sql
	schemaSQLite string
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

var errNotConnected = errors.New("database not connected")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Storage owns the database handle and the per-entity stores.
type Storage struct {
	db     *sqlx.DB
	driver string
	dsn    string
	log    *logx.Logger

	Users       *UserStore
	Activity    *ActivityStore
	Punishments *PunishmentStore
}

// ParseURL maps a database URL to a driver name and DSN.
func ParseURL(url string) (driver, dsn string, err error) {
	u := strings.TrimSpace(url)
	lower := strings.ToLower(u)
	switch {
	case u == "":
		return "", "", errors.New("database url is empty")
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, u, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return DriverSQLite, u[len("sqlite://"):], nil
	case strings.HasPrefix(lower, "sqlite:"):
		return DriverSQLite, u[len("sqlite:"):], nil
	case strings.HasPrefix(lower, "file:"):
		return DriverSQLite, u, nil
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return DriverSQLite, u, nil
	default:
		return "", "", fmt.Errorf("unsupported database url scheme: %q", redactURL(u))
	}
}

// redactURL keeps the scheme only; URLs may carry credentials.
func redactURL(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		return u[:i+3] + "..."
	}
	if i := strings.Index(u, ":"); i >= 0 {
		return u[:i+1] + "..."
	}
	return "..."
}

// Open connects to the database, applies the schema and pings it.
func Open(ctx context.Context, url string, log *logx.Logger) (*Storage, error) {
	s, err := New(url, log)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// New validates url and wires the stores without touching the database.
// Stores are unusable until Connect succeeds.
func New(url string, log *logx.Logger) (*Storage, error) {
	driver, dsn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	s := newStorage(nil, driver, log)
	s.dsn = dsn
	return s, nil
}

// Connect opens the handle, applies the schema and pings the database.
func (s *Storage) Connect(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	driver, dsn := s.driver, s.dsn
	if driver == DriverSQLite {
		if err := ensureSQLiteDir(dsn); err != nil {
			return err
		}
		if !strings.HasPrefix(dsn, "file:") {
			dsn = "file:" + dsn
		}
		dsn = withQueryParam(dsn, "_time_format", "sqlite")
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite prefers a single writer; the pragmas below are per connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, p := range []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		} {
			if _, err := db.ExecContext(ctx, p); err != nil {
				s.log.Debug("sqlite pragma failed", logx.Fields{"pragma": p, "err": err.Error()})
			}
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	s.db = db
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	s.log.Info("database connected", logx.Fields{"driver": driver})
	return nil
}

func newStorage(db *sqlx.DB, driver string, log *logx.Logger) *Storage {
	s := &Storage{db: db, driver: driver, log: log}
	s.Users = &UserStore{s: s}
	s.Activity = &ActivityStore{s: s}
	s.Punishments = &PunishmentStore{s: s}
	return s
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "//") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func withQueryParam(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}

func (s *Storage) Driver() string { return s.driver }

// DB exposes the handle for callers that need raw access (migrations, tests).
func (s *Storage) DB() *sqlx.DB { return s.db }

// Migrate applies the embedded schema. It is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if s.db == nil {
		return errNotConnected
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(pctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// q rebinds a '?' query for the active driver.
func (s *Storage) q(query string) string { return s.db.Rebind(query) }

// inTx runs fn in a transaction, committing when fn returns nil.
func (s *Storage) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqErr.Error(), "UNIQUE")
		}
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullStr(v *string) sql.NullString {
	if v == nil || strings.TrimSpace(*v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

func now() time.Time { return time.Now().UTC() }
