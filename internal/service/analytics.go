package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/keithsngth/wise-funnel-analysis/internal/aggregate"
	"github.com/keithsngth/wise-funnel-analysis/internal/domain"
	"github.com/keithsngth/wise-funnel-analysis/internal/store"
)

// ReportService runs the funnel and friction aggregations against the event
// store. It holds no mutable state; every report is an independent read.
type ReportService struct {
	store store.EventStore
	log   *zap.Logger
}

// NewReportService creates a new report service.
func NewReportService(st store.EventStore, log *zap.Logger) *ReportService {
	return &ReportService{store: st, log: log}
}

// validateSegmentBy rejects unknown segmentation columns before any data is
// loaded. A bad column is a structural failure: a partial report computed
// over a misspelled dimension would be misleading.
func validateSegmentBy(segmentBy []string) error {
	valid := make(map[string]bool)
	for _, col := range domain.SegmentColumns() {
		valid[col] = true
	}
	for _, col := range segmentBy {
		if !valid[col] {
			return fmt.Errorf("invalid segmentation column: %s (supported: platform, region, experience)", col)
		}
	}
	return nil
}

// FunnelReport computes per-(segment, stage) conversion metrics.
func (s *ReportService) FunnelReport(ctx context.Context, segmentBy []string) ([]aggregate.FunnelRow, error) {
	if err := validateSegmentBy(segmentBy); err != nil {
		return nil, err
	}

	events, err := s.store.LoadFunnelEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load funnel events: %w", err)
	}

	rows, err := aggregate.Funnel(events, segmentBy)
	if err != nil {
		return nil, err
	}

	s.log.Info("Funnel report computed",
		zap.Strings("segment_by", segmentBy),
		zap.Int("event_count", len(events)),
		zap.Int("row_count", len(rows)))

	return rows, nil
}

// FrictionReport computes per-(user, segment) inter-stage durations.
// Negative durations indicate inconsistent source timestamps; they are kept
// in the output and flagged here so the report consumer can see them.
func (s *ReportService) FrictionReport(ctx context.Context, segmentBy []string) ([]aggregate.FrictionRow, error) {
	if err := validateSegmentBy(segmentBy); err != nil {
		return nil, err
	}

	events, err := s.store.LoadFunnelEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load funnel events: %w", err)
	}

	rows, err := aggregate.Friction(events, segmentBy)
	if err != nil {
		return nil, err
	}

	negatives := 0
	for _, row := range rows {
		if row.Duration < 0 {
			negatives++
			s.log.Warn("Negative friction duration, source timestamps are inconsistent",
				zap.String("transition", row.Transition),
				zap.String("user_id", row.UserID),
				zap.Strings("segment", row.Segment),
				zap.Duration("duration", row.Duration))
		}
	}

	s.log.Info("Friction report computed",
		zap.Strings("segment_by", segmentBy),
		zap.Int("event_count", len(events)),
		zap.Int("row_count", len(rows)),
		zap.Int("negative_durations", negatives))

	return rows, nil
}
