// README: Chairs and their location samples.
package chair

import (
	"time"

	"rideon/internal/types"
)

type Chair struct {
	ID          types.ID
	OwnerID     types.ID
	Name        string
	Model       string
	IsActive    bool
	AccessToken string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type LocationSample struct {
	ID         types.ID
	ChairID    types.ID
	Coordinate types.Coordinate
	CreatedAt  time.Time
}
