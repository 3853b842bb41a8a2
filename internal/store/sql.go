package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DBFileName is the SQLite database file created in the data directory.
const DBFileName = "driftwatch.db"

// SQLStore implements Store on top of SQLite or PostgreSQL.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Options configures how a SQLite store is opened.
type Options struct {
	// CreateIfNotExists creates the directory and the database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default SQLite options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the SQLite store in dbDir and migrates its schema.
func Open(ctx context.Context, dbDir string, opts Options) (*SQLStore, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file. Pragmas in the DSN apply to
	// every new connection.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to PostgreSQL and migrates its schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database. The schema is not touched.
func New(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	var schema string
	switch s.db.DriverName() {
	case DriverSQLite:
		schema = schemaFor("INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT")
	case DriverPostgres:
		schema = schemaFor("BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ")
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, s.db.DriverName())
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

func schemaFor(serial, timestamp string) string {
	r := strings.NewReplacer("{{serial}}", serial, "{{timestamp}}", timestamp)
	return r.Replace(`
	CREATE TABLE IF NOT EXISTS scouts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		domain TEXT NOT NULL,
		critical_urls TEXT NOT NULL DEFAULT '[]',
		expected_keywords TEXT NOT NULL DEFAULT '[]',
		sensitive_keywords TEXT NOT NULL DEFAULT '[]',
		structural_paths TEXT NOT NULL DEFAULT '[]',
		notify_to TEXT NOT NULL DEFAULT '[]',
		frequency TEXT NOT NULL DEFAULT 'daily',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_execution_id TEXT,
		created_at {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		scout_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		spec_version TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at {{timestamp}} NOT NULL,
		completed_at {{timestamp}},
		urls_checked INTEGER NOT NULL DEFAULT 0,
		links_found INTEGER NOT NULL DEFAULT 0,
		links_broken INTEGER NOT NULL DEFAULT 0,
		urls_new INTEGER NOT NULL DEFAULT 0,
		alerts_generated INTEGER NOT NULL DEFAULT 0,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_executions_domain ON executions(domain, started_at);

	CREATE TABLE IF NOT EXISTS link_validations (
		id {{serial}},
		execution_id TEXT NOT NULL REFERENCES executions(id),
		url TEXT NOT NULL,
		status_code INTEGER,
		response_time_ms INTEGER NOT NULL DEFAULT 0,
		is_broken BOOLEAN NOT NULL,
		redirect_target TEXT,
		error_message TEXT,
		checked_at {{timestamp}} NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_link_validations_execution ON link_validations(execution_id);

	CREATE TABLE IF NOT EXISTS page_snapshots (
		id {{serial}},
		domain TEXT NOT NULL,
		url TEXT NOT NULL,
		execution_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		links TEXT NOT NULL DEFAULT '[]',
		keywords TEXT NOT NULL DEFAULT '[]',
		captured_at {{timestamp}} NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_page_snapshots_key ON page_snapshots(domain, url, captured_at);

	CREATE TABLE IF NOT EXISTS url_deltas (
		id {{serial}},
		execution_id TEXT NOT NULL REFERENCES executions(id),
		page_url TEXT NOT NULL,
		url TEXT NOT NULL,
		delta_type TEXT NOT NULL,
		previous_state TEXT,
		current_state TEXT,
		detected_at {{timestamp}} NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_url_deltas_execution ON url_deltas(execution_id);

	CREATE TABLE IF NOT EXISTS semantic_deltas (
		id {{serial}},
		execution_id TEXT NOT NULL REFERENCES executions(id),
		url TEXT NOT NULL,
		previous_keywords TEXT NOT NULL DEFAULT '[]',
		detected_keywords TEXT NOT NULL DEFAULT '[]',
		impact_level TEXT NOT NULL,
		llm_analysis TEXT,
		detected_at {{timestamp}} NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_semantic_deltas_execution ON semantic_deltas(execution_id);

	CREATE TABLE IF NOT EXISTS alerts (
		id {{serial}},
		execution_id TEXT NOT NULL REFERENCES executions(id),
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		notified BOOLEAN NOT NULL DEFAULT FALSE,
		notified_at {{timestamp}},
		created_at {{timestamp}} NOT NULL,
		UNIQUE(execution_id, url, alert_type)
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_pending ON alerts(notified, created_at)
	`)
}

// timeLayout has fixed-width fractional seconds so that stored SQLite
// timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats are the formats a timestamp column may come back in,
// depending on the driver.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("failed to parse list: %w", err)
	}
	return items, nil
}
