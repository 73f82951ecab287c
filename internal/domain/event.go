package domain

import (
	"fmt"
	"time"
)

// Funnel event names as they appear in the raw data.
const (
	EventTransferCreated     = "Transfer Created"
	EventTransferFunded      = "Transfer Funded"
	EventTransferTransferred = "Transfer Transferred"
)

// Stage is the ordinal position of a funnel milestone. Higher means further
// down the funnel.
type Stage int

const (
	StageCreated Stage = iota + 1
	StageFunded
	StageTransferred
)

// String returns the short milestone name used in report output.
func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "Created"
	case StageFunded:
		return "Funded"
	case StageTransferred:
		return "Transferred"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Prev returns the immediately preceding stage, if any.
func (s Stage) Prev() (Stage, bool) {
	if s <= StageCreated || s > StageTransferred {
		return 0, false
	}
	return s - 1, true
}

// StageOf maps an event name to its funnel stage. Events outside the funnel
// have no stage and must be excluded from funnel and friction computation.
func StageOf(eventName string) (Stage, bool) {
	switch eventName {
	case EventTransferCreated:
		return StageCreated, true
	case EventTransferFunded:
		return StageFunded, true
	case EventTransferTransferred:
		return StageTransferred, true
	}
	return 0, false
}

// FunnelEventNames lists the event names that carry a stage, in stage order.
func FunnelEventNames() []string {
	return []string{EventTransferCreated, EventTransferFunded, EventTransferTransferred}
}

// TransitionLabel describes the hop between two consecutive stages,
// e.g. "Created → Funded".
func TransitionLabel(from, to Stage) string {
	return fmt.Sprintf("%s → %s", from, to)
}

// Event is a single user-interaction record. Rows are immutable once loaded.
type Event struct {
	EventName  string
	EventTime  time.Time
	UserID     string
	Platform   string
	Region     string
	Experience string
}

// Stage returns the funnel stage of the event, if its name maps to one.
func (e Event) Stage() (Stage, bool) {
	return StageOf(e.EventName)
}

// Segmentation dimension column names accepted by the aggregators.
const (
	DimPlatform   = "platform"
	DimRegion     = "region"
	DimExperience = "experience"
)

// SegmentColumns lists the valid segmentation dimensions.
func SegmentColumns() []string {
	return []string{DimPlatform, DimRegion, DimExperience}
}

// Dimension returns the value of a segmentation column for this event.
// An unknown column is a structural failure, not a data condition.
func (e Event) Dimension(col string) (string, error) {
	switch col {
	case DimPlatform:
		return e.Platform, nil
	case DimRegion:
		return e.Region, nil
	case DimExperience:
		return e.Experience, nil
	}
	return "", fmt.Errorf("unknown segmentation column: %s (supported: platform, region, experience)", col)
}
