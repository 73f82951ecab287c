package service

import (
	"context"
	"errors"
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

func fixtureEvents() []domain.Event {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Event{
		{EventName: domain.EventTransferCreated, EventTime: at, UserID: "u1", Platform: "iOS", Region: "USA", Experience: "New"},
		{EventName: domain.EventTransferCreated, EventTime: at, UserID: "u2", Platform: "iOS", Region: "USA", Experience: "New"},
		{EventName: domain.EventTransferFunded, EventTime: at.Add(24 * time.Hour), UserID: "u1", Platform: "iOS", Region: "USA", Experience: "New"},
	}
}

func TestFunnelReport_Success(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("LoadFunnelEvents", mock.Anything).Return(fixtureEvents(), nil)

	svc := NewReportService(mockStore, zap.NewNop())

	rows, err := svc.FunnelReport(context.Background(), []string{"region"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, domain.StageCreated, rows[0].Stage)
	assert.Equal(t, 2, rows[0].UserCount)
	assert.Equal(t, domain.StageFunded, rows[1].Stage)
	assert.Equal(t, 1, rows[1].UserCount)

	mockStore.AssertExpectations(t)
}

func TestFunnelReport_InvalidSegmentColumn(t *testing.T) {
	mockStore := new(MockEventStore)
	svc := NewReportService(mockStore, zap.NewNop())

	_, err := svc.FunnelReport(context.Background(), []string{"region", "country"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid segmentation column")

	// Nothing is loaded when the segmentation itself is malformed.
	mockStore.AssertNotCalled(t, "LoadFunnelEvents", mock.Anything)
}

func TestFunnelReport_StoreError(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("LoadFunnelEvents", mock.Anything).Return(nil, errors.New("connection lost"))

	svc := NewReportService(mockStore, zap.NewNop())

	_, err := svc.FunnelReport(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load funnel events")
}

func TestFrictionReport_Success(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("LoadFunnelEvents", mock.Anything).Return(fixtureEvents(), nil)

	svc := NewReportService(mockStore, zap.NewNop())

	rows, err := svc.FrictionReport(context.Background(), []string{"region", "experience"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Created → Funded", rows[0].Transition)
	assert.Equal(t, "u1", rows[0].UserID)
	assert.Equal(t, 24*time.Hour, rows[0].Duration)
}

func TestFrictionReport_NegativeDurationKept(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []domain.Event{
		{EventName: domain.EventTransferCreated, EventTime: at, UserID: "u1", Platform: "iOS", Region: "USA", Experience: "New"},
		{EventName: domain.EventTransferFunded, EventTime: at.Add(-time.Hour), UserID: "u1", Platform: "iOS", Region: "USA", Experience: "New"},
	}

	mockStore := new(MockEventStore)
	mockStore.On("LoadFunnelEvents", mock.Anything).Return(events, nil)

	svc := NewReportService(mockStore, zap.NewNop())

	rows, err := svc.FrictionReport(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, -time.Hour, rows[0].Duration)
}

func TestFrictionReport_InvalidSegmentColumn(t *testing.T) {
	mockStore := new(MockEventStore)
	svc := NewReportService(mockStore, zap.NewNop())

	_, err := svc.FrictionReport(context.Background(), []string{"channel"})
	require.Error(t, err)
	mockStore.AssertNotCalled(t, "LoadFunnelEvents", mock.Anything)
}
