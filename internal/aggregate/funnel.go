// Package aggregate holds the funnel and friction aggregators. Both are pure
// functions over an already-loaded event set: they replay the LAG and
// FIRST_VALUE window semantics as explicit sort-then-scan passes per segment
// partition, so no query engine is involved.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/keithsngth/wise-funnel-analysis/internal/domain"
)

// FunnelRow is one (segment, stage) aggregate. Rates are null when the
// denominator is missing or zero, never NaN or Inf.
type FunnelRow struct {
	Segment                  []string
	Stage                    domain.Stage
	UserCount                int
	PrevStageCount           *int
	ConversionRate           decimal.NullDecimal
	DropOffRate              decimal.NullDecimal
	CumulativeConversionRate decimal.NullDecimal
}

type partition struct {
	values []string
	// distinct users per stage
	users map[domain.Stage]map[string]struct{}
	// first event time per (user, stage), for friction
	firstSeen map[string]map[domain.Stage]time.Time
}

// Funnel counts distinct users per (segment, stage) and derives conversion,
// drop-off and cumulative conversion rates between consecutive present
// stages. Output is ordered by segment values (in segmentBy order), then
// stage ordinal ascending. Events without a funnel stage are ignored.
func Funnel(events []domain.Event, segmentBy []string) ([]FunnelRow, error) {
	parts, err := partitionEvents(events, segmentBy)
	if err != nil {
		return nil, err
	}

	var rows []FunnelRow
	for _, part := range parts {
		stages := presentStages(part.users)

		var first int
		var prev *int
		for i, stage := range stages {
			cur := len(part.users[stage])
			if i == 0 {
				first = cur
			}

			row := FunnelRow{
				Segment:                  part.values,
				Stage:                    stage,
				UserCount:                cur,
				PrevStageCount:           prev,
				CumulativeConversionRate: ratio(cur, first),
			}
			if prev != nil {
				row.ConversionRate = ratio(cur, *prev)
				row.DropOffRate = ratio(*prev-cur, *prev)
			}
			rows = append(rows, row)

			prevCount := cur
			prev = &prevCount
		}
	}

	return rows, nil
}

// ratio divides num by den rounded to 2 decimal places, half away from zero.
// A zero denominator yields null rather than an error.
func ratio(num, den int) decimal.NullDecimal {
	if den == 0 {
		return decimal.NullDecimal{}
	}
	value := decimal.NewFromInt(int64(num)).
		Div(decimal.NewFromInt(int64(den))).
		Round(2)
	return decimal.NullDecimal{Decimal: value, Valid: true}
}

// partitionEvents groups stage-bearing events by their segment key and
// returns the partitions ordered by segment values. A nil or empty segmentBy
// yields a single partition covering everything.
func partitionEvents(events []domain.Event, segmentBy []string) ([]*partition, error) {
	bySegment := make(map[string]*partition)

	for _, event := range events {
		stage, ok := event.Stage()
		if !ok {
			continue
		}

		values := make([]string, len(segmentBy))
		for i, col := range segmentBy {
			value, err := event.Dimension(col)
			if err != nil {
				return nil, err
			}
			values[i] = value
		}

		key := segmentKey(values)
		part, ok := bySegment[key]
		if !ok {
			part = &partition{
				values:    values,
				users:     make(map[domain.Stage]map[string]struct{}),
				firstSeen: make(map[string]map[domain.Stage]time.Time),
			}
			bySegment[key] = part
		}

		if part.users[stage] == nil {
			part.users[stage] = make(map[string]struct{})
		}
		part.users[stage][event.UserID] = struct{}{}

		if part.firstSeen[event.UserID] == nil {
			part.firstSeen[event.UserID] = make(map[domain.Stage]time.Time)
		}
		if seen, ok := part.firstSeen[event.UserID][stage]; !ok || event.EventTime.Before(seen) {
			part.firstSeen[event.UserID][stage] = event.EventTime
		}
	}

	parts := make([]*partition, 0, len(bySegment))
	for _, part := range bySegment {
		parts = append(parts, part)
	}
	sort.Slice(parts, func(i, j int) bool {
		return lessStrings(parts[i].values, parts[j].values)
	})

	return parts, nil
}

func presentStages(users map[domain.Stage]map[string]struct{}) []domain.Stage {
	stages := make([]domain.Stage, 0, len(users))
	for stage := range users {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	return stages
}

func segmentKey(values []string) string {
	return strings.Join(values, "\x1f")
}

func lessStrings(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
