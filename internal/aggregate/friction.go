package aggregate

import (
	"sort"
	"time"

	"github.com/keithsngth/wise-funnel-analysis/internal/domain"
)

// FrictionRow is the elapsed time between one user's first occurrence of a
// stage and their first occurrence of the immediately preceding stage.
// Duration may be negative when the source timestamps are inconsistent; such
// rows are surfaced as-is so the data-quality issue stays visible in the
// report.
type FrictionRow struct {
	Transition string
	Segment    []string
	UserID     string
	Duration   time.Duration
}

// Friction computes per-user inter-stage durations within a segmentation.
// A transition row is only emitted when the user actually has a recorded
// first occurrence of the immediately preceding stage; users who jump
// straight to a later stage produce no row for the skipped transition.
// Output is ordered by transition label, then segment values, then user id.
func Friction(events []domain.Event, segmentBy []string) ([]FrictionRow, error) {
	parts, err := partitionEvents(events, segmentBy)
	if err != nil {
		return nil, err
	}

	var rows []FrictionRow
	for _, part := range parts {
		for userID, firstSeen := range part.firstSeen {
			stages := make([]domain.Stage, 0, len(firstSeen))
			for stage := range firstSeen {
				stages = append(stages, stage)
			}
			sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })

			for _, stage := range stages {
				prev, ok := stage.Prev()
				if !ok {
					continue
				}
				prevTime, ok := firstSeen[prev]
				if !ok {
					continue
				}

				rows = append(rows, FrictionRow{
					Transition: domain.TransitionLabel(prev, stage),
					Segment:    part.values,
					UserID:     userID,
					Duration:   firstSeen[stage].Sub(prevTime),
				})
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Transition != rows[j].Transition {
			return rows[i].Transition < rows[j].Transition
		}
		if !equalStrings(rows[i].Segment, rows[j].Segment) {
			return lessStrings(rows[i].Segment, rows[j].Segment)
		}
		return rows[i].UserID < rows[j].UserID
	})

	return rows, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
