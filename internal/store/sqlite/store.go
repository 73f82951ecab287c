package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/keithsngth/wise-funnel-analysis/internal/domain"
)

// Event times are stored as unix milliseconds.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements store.EventStore over an embedded SQLite file. A single
// file backs the whole batch so the loader and the aggregator queries share
// the same visibility boundary.
type Store struct {
	db         *sql.DB
	table      string
	schemaPath string
	log        *zap.Logger
}

// Open opens (creating if needed) the SQLite database at path. The parent
// directory is created when missing, matching the behaviour expected of a
// configured database_path.
func Open(path, table, schemaPath string, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	log.Debug("SQLite database opened", zap.String("path", cleanPath), zap.String("table", table))

	return &Store{db: db, table: table, schemaPath: schemaPath, log: log}, nil
}

// InitSchema creates the destination table. When a schema file is configured
// its statements are executed as-is; otherwise the built-in transactions DDL
// is used.
func (s *Store) InitSchema(ctx context.Context) error {
	if s.schemaPath != "" {
		ddl, err := os.ReadFile(s.schemaPath)
		if err != nil {
			return fmt.Errorf("read schema file: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, string(ddl)); err != nil {
			return fmt.Errorf("execute schema file %s: %w", s.schemaPath, err)
		}
		s.log.Info("Schema created from file", zap.String("schema", s.schemaPath))
		return nil
	}

	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		event_name TEXT NOT NULL,
		event_time INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		region TEXT NOT NULL,
		experience TEXT NOT NULL
	)`, s.table)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_event_name ON %s (event_name, user_id)`,
		strings.ToLower(s.table), s.table,
	)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create index on %s: %w", s.table, err)
	}

	s.log.Info("SQLite schema initialized", zap.String("table", s.table))
	return nil
}

// Truncate clears existing data but keeps the table structure.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return fmt.Errorf("truncate table %s: %w", s.table, err)
	}
	return nil
}

// InsertBatch writes events inside a single transaction.
func (s *Store) InsertBatch(ctx context.Context, events []domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (event_name, event_time, user_id, platform, region, experience) VALUES (?, ?, ?, ?, ?, ?)`,
		s.table,
	))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, event := range events {
		if _, err := stmt.ExecContext(ctx,
			event.EventName,
			toMillis(event.EventTime),
			event.UserID,
			event.Platform,
			event.Region,
			event.Experience,
		); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert event: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert transaction: %w", err)
	}

	return inserted, nil
}

// LoadFunnelEvents returns the stage-bearing rows ordered by user and time.
func (s *Store) LoadFunnelEvents(ctx context.Context) ([]domain.Event, error) {
	query := fmt.Sprintf(`
	SELECT event_name, event_time, user_id, platform, region, experience
	FROM %s
	WHERE event_name IN (?, ?, ?)
	ORDER BY user_id, event_time`, s.table)

	names := domain.FunnelEventNames()
	rows, err := s.db.QueryContext(ctx, query, names[0], names[1], names[2])
	if err != nil {
		return nil, fmt.Errorf("query funnel events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var millis int64
		if err := rows.Scan(
			&event.EventName,
			&millis,
			&event.UserID,
			&event.Platform,
			&event.Region,
			&event.Experience,
		); err != nil {
			return nil, fmt.Errorf("scan funnel event: %w", err)
		}
		event.EventTime = fromMillis(millis)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funnel events: %w", err)
	}

	return events, nil
}

// Ping checks if the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
