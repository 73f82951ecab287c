// Package ingest loads the raw CSV of funnel events into the event store,
// applying the same cleaning the analytics pipeline has always done: column
// name normalisation, exact-duplicate removal, and dropping rows with missing
// or unparseable values. Row-level problems are counted and logged, never
// fatal; only an unreadable file or a missing required column halts the load.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keithsngth/wise-funnel-analysis/internal/domain"
	"github.com/keithsngth/wise-funnel-analysis/internal/store"
)

// Accepted timestamp layouts, tried in order.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Config controls batching and load mode.
type Config struct {
	// BatchSize is the number of rows per insert batch.
	BatchSize int
	// Replace truncates the destination table before loading.
	Replace bool
}

// Summary reports what happened to the rows of a load.
type Summary struct {
	RowsRead         int
	RowsLoaded       int
	DroppedMissing   int
	DroppedDuplicate int
	DroppedBadTime   int
}

// Loader reads a CSV file and writes cleaned events to the store in batches.
type Loader struct {
	store  store.EventStore
	config Config
	log    *zap.Logger
}

// NewLoader creates a new CSV loader.
func NewLoader(st store.EventStore, config Config, log *zap.Logger) *Loader {
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	return &Loader{store: st, config: config, log: log}
}

// columnIndex resolves the required columns from a normalised header row.
// EVENT_TIME and EVENT_DATE are accepted interchangeably for the timestamp.
type columnIndex struct {
	eventName  int
	eventTime  int
	userID     int
	platform   int
	region     int
	experience int
}

func resolveColumns(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, col := range header {
		pos[strings.ToUpper(strings.TrimSpace(col))] = i
	}

	idx := columnIndex{eventName: -1, eventTime: -1, userID: -1, platform: -1, region: -1, experience: -1}

	required := map[string]*int{
		"EVENT_NAME": &idx.eventName,
		"USER_ID":    &idx.userID,
		"PLATFORM":   &idx.platform,
		"REGION":     &idx.region,
		"EXPERIENCE": &idx.experience,
	}
	var missing []string
	for name, target := range required {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		*target = i
	}

	if i, ok := pos["EVENT_TIME"]; ok {
		idx.eventTime = i
	} else if i, ok := pos["EVENT_DATE"]; ok {
		idx.eventTime = i
	} else {
		missing = append(missing, "EVENT_TIME")
	}

	if len(missing) > 0 {
		return idx, fmt.Errorf("csv is missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

// rowFingerprint builds a deterministic dedupe key from the normalised row
// content, so exact duplicate rows collapse regardless of position in the
// file.
func rowFingerprint(event domain.Event) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s|%s",
		event.EventName,
		event.EventTime.UnixMilli(),
		event.UserID,
		event.Platform,
		event.Region,
		event.Experience,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

func parseEventTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp: %q", raw)
}

// LoadCSV reads the file at path and loads it into the destination table.
func (l *Loader) LoadCSV(ctx context.Context, path string) (*Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw data file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	idx, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	if l.config.Replace {
		if err := l.store.Truncate(ctx); err != nil {
			return nil, fmt.Errorf("truncate before replace load: %w", err)
		}
		l.log.Debug("Cleared existing data before load")
	}

	summary := &Summary{}
	seen := make(map[string]struct{})
	batch := make([]domain.Event, 0, l.config.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := l.store.InsertBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		summary.RowsLoaded += inserted
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		summary.RowsRead++

		event, ok := l.parseRow(record, idx, summary)
		if !ok {
			continue
		}

		fp := rowFingerprint(event)
		if _, dup := seen[fp]; dup {
			summary.DroppedDuplicate++
			continue
		}
		seen[fp] = struct{}{}

		batch = append(batch, event)
		if len(batch) >= l.config.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	l.log.Info("CSV load complete",
		zap.String("path", path),
		zap.Int("rows_read", summary.RowsRead),
		zap.Int("rows_loaded", summary.RowsLoaded),
		zap.Int("dropped_missing", summary.DroppedMissing),
		zap.Int("dropped_duplicate", summary.DroppedDuplicate),
		zap.Int("dropped_bad_time", summary.DroppedBadTime))

	return summary, nil
}

func (l *Loader) parseRow(record []string, idx columnIndex, summary *Summary) (domain.Event, bool) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	event := domain.Event{
		EventName:  field(idx.eventName),
		UserID:     field(idx.userID),
		Platform:   field(idx.platform),
		Region:     field(idx.region),
		Experience: field(idx.experience),
	}
	rawTime := field(idx.eventTime)

	if event.EventName == "" || event.UserID == "" || event.Platform == "" ||
		event.Region == "" || event.Experience == "" || rawTime == "" {
		summary.DroppedMissing++
		return domain.Event{}, false
	}

	eventTime, err := parseEventTime(rawTime)
	if err != nil {
		summary.DroppedBadTime++
		l.log.Debug("Dropping row with unparseable timestamp",
			zap.String("user_id", event.UserID),
			zap.String("event_time", rawTime))
		return domain.Event{}, false
	}
	event.EventTime = eventTime

	return event, true
}
