package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keithsngth/wise-funnel-analysis/internal/domain"
)

// MockEventStore is a mock implementation of store.EventStore
type MockEventStore struct {
	mock.Mock
	inserted []domain.Event
}

func (m *MockEventStore) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventStore) Truncate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventStore) InsertBatch(ctx context.Context, events []domain.Event) (int, error) {
	args := m.Called(ctx, events)
	m.inserted = append(m.inserted, events...)
	return args.Int(0), args.Error(1)
}

func (m *MockEventStore) LoadFunnelEvents(ctx context.Context) ([]domain.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV_NormalizesHeadersAndParsesRows(t *testing.T) {
	csv := "event_name,event_date,user_id,platform,region,experience\n" +
		"Transfer Created,2024-03-01 10:00:00,u1,iOS,India,New\n" +
		"Transfer Funded,2024-03-02T10:00:00,u1,iOS,India,New\n"
	path := writeTempCSV(t, csv)

	st := new(MockEventStore)
	st.On("InsertBatch", mock.Anything, mock.Anything).Return(2, nil)

	loader := NewLoader(st, Config{BatchSize: 10}, zap.NewNop())
	summary, err := loader.LoadCSV(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RowsRead)
	assert.Equal(t, 2, summary.RowsLoaded)
	require.Len(t, st.inserted, 2)

	first := st.inserted[0]
	assert.Equal(t, domain.EventTransferCreated, first.EventName)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, "India", first.Region)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), first.EventTime)
}

func TestLoadCSV_DropsExactDuplicates(t *testing.T) {
	csv := "EVENT_NAME,EVENT_TIME,USER_ID,PLATFORM,REGION,EXPERIENCE\n" +
		"Transfer Created,2024-03-01 10:00:00,u1,iOS,India,New\n" +
		"Transfer Created,2024-03-01 10:00:00,u1,iOS,India,New\n" +
		"Transfer Created,2024-03-01 11:00:00,u1,iOS,India,New\n"
	path := writeTempCSV(t, csv)

	st := new(MockEventStore)
	st.On("InsertBatch", mock.Anything, mock.Anything).Return(2, nil)

	loader := NewLoader(st, Config{BatchSize: 10}, zap.NewNop())
	summary, err := loader.LoadCSV(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.RowsRead)
	assert.Equal(t, 1, summary.DroppedDuplicate)
	assert.Len(t, st.inserted, 2)
}

func TestLoadCSV_DropsRowsWithMissingValues(t *testing.T) {
	csv := "EVENT_NAME,EVENT_TIME,USER_ID,PLATFORM,REGION,EXPERIENCE\n" +
		"Transfer Created,2024-03-01 10:00:00,u1,iOS,India,New\n" +
		"Transfer Created,2024-03-01 10:00:00,,iOS,India,New\n" +
		"Transfer Created,not-a-time,u2,iOS,India,New\n"
	path := writeTempCSV(t, csv)

	st := new(MockEventStore)
	st.On("InsertBatch", mock.Anything, mock.Anything).Return(1, nil)

	loader := NewLoader(st, Config{BatchSize: 10}, zap.NewNop())
	summary, err := loader.LoadCSV(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.RowsRead)
	assert.Equal(t, 1, summary.DroppedMissing)
	assert.Equal(t, 1, summary.DroppedBadTime)
	assert.Len(t, st.inserted, 1)
}

func TestLoadCSV_FlushesInBatches(t *testing.T) {
	csv := "EVENT_NAME,EVENT_TIME,USER_ID,PLATFORM,REGION,EXPERIENCE\n" +
		"Transfer Created,2024-03-01 10:00:00,u1,iOS,India,New\n" +
		"Transfer Created,2024-03-01 10:00:00,u2,iOS,India,New\n" +
		"Transfer Created,2024-03-01 10:00:00,u3,iOS,India,New\n" +
		"Transfer Created,2024-03-01 10:00:00,u4,iOS,India,New\n" +
		"Transfer Created,2024-03-01 10:00:00,u5,iOS,India,New\n"
	path := writeTempCSV(t, csv)

	st := new(MockEventStore)
	st.On("InsertBatch", mock.Anything, mock.MatchedBy(func(events []domain.Event) bool { return len(events) == 2 })).Return(2, nil)
	st.On("InsertBatch", mock.Anything, mock.MatchedBy(func(events []domain.Event) bool { return len(events) == 1 })).Return(1, nil)

	loader := NewLoader(st, Config{BatchSize: 2}, zap.NewNop())
	summary, err := loader.LoadCSV(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.RowsLoaded)
	st.AssertNumberOfCalls(t, "InsertBatch", 3)
}

func TestLoadCSV_ReplaceModeTruncatesFirst(t *testing.T) {
	csv := "EVENT_NAME,EVENT_TIME,USER_ID,PLATFORM,REGION,EXPERIENCE\n" +
		"Transfer Created,2024-03-01 10:00:00,u1,iOS,India,New\n"
	path := writeTempCSV(t, csv)

	st := new(MockEventStore)
	st.On("Truncate", mock.Anything).Return(nil)
	st.On("InsertBatch", mock.Anything, mock.Anything).Return(1, nil)

	loader := NewLoader(st, Config{BatchSize: 10, Replace: true}, zap.NewNop())
	_, err := loader.LoadCSV(context.Background(), path)
	require.NoError(t, err)

	st.AssertCalled(t, "Truncate", mock.Anything)
}

func TestLoadCSV_MissingColumnFails(t *testing.T) {
	csv := "EVENT_NAME,EVENT_TIME,USER_ID,PLATFORM\n" +
		"Transfer Created,2024-03-01 10:00:00,u1,iOS\n"
	path := writeTempCSV(t, csv)

	st := new(MockEventStore)
	loader := NewLoader(st, Config{BatchSize: 10}, zap.NewNop())

	_, err := loader.LoadCSV(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	st.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
}

func TestLoadCSV_MissingFileFails(t *testing.T) {
	st := new(MockEventStore)
	loader := NewLoader(st, Config{BatchSize: 10}, zap.NewNop())

	_, err := loader.LoadCSV(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}
