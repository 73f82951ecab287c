package clickhouse

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/keithsngth/wise-funnel-analysis/internal/domain"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements store.EventStore for deployments that already keep their
// event history in a ClickHouse warehouse instead of a local database file.
type Store struct {
	client     *Client
	table      string
	schemaPath string
	log        *zap.Logger
}

// NewStore creates a ClickHouse-backed event store for the given table.
func NewStore(client *Client, table, schemaPath string, log *zap.Logger) (*Store, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &Store{client: client, table: table, schemaPath: schemaPath, log: log}, nil
}

// InitSchema creates the destination table, from the configured schema file
// when present and the built-in MergeTree DDL otherwise.
func (s *Store) InitSchema(ctx context.Context) error {
	if s.schemaPath != "" {
		ddl, err := os.ReadFile(s.schemaPath)
		if err != nil {
			return fmt.Errorf("read schema file: %w", err)
		}
		if err := s.client.Conn().Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("execute schema file %s: %w", s.schemaPath, err)
		}
		return nil
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		event_name LowCardinality(String),
		event_time DateTime64(3),
		user_id String,
		platform LowCardinality(String),
		region LowCardinality(String),
		experience LowCardinality(String)
	) ENGINE = MergeTree
	ORDER BY (user_id, event_time)`, s.table)

	if err := s.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}

	s.log.Info("ClickHouse schema initialized", zap.String("table", s.table))
	return nil
}

// Truncate clears existing data but keeps the table structure.
func (s *Store) Truncate(ctx context.Context) error {
	if err := s.client.Conn().Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE IF EXISTS %s`, s.table)); err != nil {
		return fmt.Errorf("truncate table %s: %w", s.table, err)
	}
	return nil
}

// InsertBatch inserts a batch of events.
func (s *Store) InsertBatch(ctx context.Context, events []domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := s.client.Conn().PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", s.table))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	inserted := 0
	for _, event := range events {
		if err := batch.Append(
			event.EventName,
			event.EventTime.UTC(),
			event.UserID,
			event.Platform,
			event.Region,
			event.Experience,
		); err != nil {
			return 0, fmt.Errorf("failed to append event to batch: %w", err)
		}
		inserted++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
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
	rows, err := s.client.Conn().Query(ctx, query, names[0], names[1], names[2])
	if err != nil {
		return nil, fmt.Errorf("query funnel events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var eventTime time.Time
		if err := rows.Scan(
			&event.EventName,
			&eventTime,
			&event.UserID,
			&event.Platform,
			&event.Region,
			&event.Experience,
		); err != nil {
			return nil, fmt.Errorf("scan funnel event: %w", err)
		}
		event.EventTime = eventTime.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funnel events: %w", err)
	}

	return events, nil
}

// Ping checks if the ClickHouse connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Conn().Ping(ctx)
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}
