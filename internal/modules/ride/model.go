// README: Ride aggregate, status log entries and the status flow.
package ride

import (
	"time"

	"rideon/internal/types"
)

type Status string

const (
	StatusMatching  Status = "MATCHING"
	StatusEnroute   Status = "ENROUTE"
	StatusPickup    Status = "PICKUP"
	StatusCarrying  Status = "CARRYING"
	StatusArrived   Status = "ARRIVED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

type Ride struct {
	ID          types.ID
	UserID      types.ID
	ChairID     *types.ID
	Pickup      types.Coordinate
	Destination types.Coordinate
	Evaluation  *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StatusEvent is one append-only row of a ride's status log. The two
// sent-at columns are the per-channel delivery watermarks.
type StatusEvent struct {
	ID          types.ID
	RideID      types.ID
	Status      Status
	CreatedAt   time.Time
	AppSentAt   *time.Time
	ChairSentAt *time.Time
}

// Channel selects which delivery watermark an operation reads or advances.
type Channel string

const (
	ChannelApp   Channel = "app"
	ChannelChair Channel = "chair"
)

func (c Channel) sentColumn() string {
	if c == ChannelChair {
		return "chair_sent_at"
	}
	return "app_sent_at"
}

// AllowedTransitions represents the ride state flow as code. The flow is
// strictly forward; CANCELED exists as a terminal guard state only.
var AllowedTransitions = map[Status][]Status{
	StatusMatching: {StatusEnroute},
	StatusEnroute:  {StatusPickup},
	StatusPickup:   {StatusCarrying},
	StatusCarrying: {StatusArrived},
	StatusArrived:  {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status may be appended.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusCanceled
}
