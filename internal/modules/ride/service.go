// README: Ride lifecycle service: creation, explicit chair transitions,
// coordinate-driven transitions and per-chair statistics.
package ride

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideon/internal/modules/pricing"
	"rideon/internal/observability"
	"rideon/internal/types"
)

var (
	ErrNotFound     = errors.New("ride not found")
	ErrInvalidState = errors.New("invalid status transition")
	ErrActiveRide   = errors.New("user already has an active ride")
	ErrBadRequest   = errors.New("bad request")
)

type Service struct {
	db      *pgxpool.Pool
	store   *Store
	coupons *pricing.Store
}

func NewService(db *pgxpool.Pool, store *Store, coupons *pricing.Store) *Service {
	return &Service{db: db, store: store, coupons: coupons}
}

type CreateCommand struct {
	UserID      types.ID
	Pickup      types.Coordinate
	Destination types.Coordinate
}

// Create opens a ride in MATCHING and binds the user's best coupon to it.
// Duplicate-check, insert, status append and coupon bind commit atomically.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback(ctx)

	st := s.store.WithTx(tx)
	if err := st.LockUser(ctx, cmd.UserID); err != nil {
		return "", 0, err
	}
	active, err := st.HasActiveByUser(ctx, cmd.UserID)
	if err != nil {
		return "", 0, err
	}
	if active {
		return "", 0, ErrActiveRide
	}

	r := &Ride{
		ID:          types.ID(uuid.NewString()),
		UserID:      cmd.UserID,
		Pickup:      cmd.Pickup,
		Destination: cmd.Destination,
	}
	if err := st.Create(ctx, r); err != nil {
		return "", 0, err
	}
	if err := st.AppendStatus(ctx, r.ID, StatusMatching); err != nil {
		return "", 0, err
	}

	count, err := st.CountByUser(ctx, cmd.UserID)
	if err != nil {
		return "", 0, err
	}
	coupons := s.coupons.WithTx(tx)
	if err := coupons.BindToRide(ctx, cmd.UserID, r.ID, count == 1); err != nil {
		return "", 0, err
	}
	discount, err := coupons.DiscountForRide(ctx, r.ID)
	if err != nil {
		return "", 0, err
	}
	fare := pricing.DiscountedFare(cmd.Pickup, cmd.Destination, discount)

	if err := tx.Commit(ctx); err != nil {
		return "", 0, err
	}
	observability.RidesCreatedTotal.Inc()
	return r.ID, fare, nil
}

type StatusCommand struct {
	RideID  types.ID
	ChairID types.ID
	Status  Status
}

// PostStatus applies an explicit chair-reported transition. Only ENROUTE
// and CARRYING may be reported directly; the rest of the flow is driven by
// coordinates and settlement.
func (s *Service) PostStatus(ctx context.Context, cmd StatusCommand) error {
	if cmd.Status != StatusEnroute && cmd.Status != StatusCarrying {
		return ErrBadRequest
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	st := s.store.WithTx(tx)
	r, err := st.GetForUpdate(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if r.ChairID == nil || *r.ChairID != cmd.ChairID {
		return ErrBadRequest
	}
	current, err := st.LatestStatus(ctx, r.ID)
	if err != nil {
		return err
	}
	if !CanTransition(current, cmd.Status) {
		return ErrInvalidState
	}
	if err := st.AppendStatus(ctx, r.ID, cmd.Status); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AdvanceOnCoordinate appends the coordinate-driven transitions inside the
// caller's transaction: reaching the pickup point while ENROUTE yields
// PICKUP, reaching the destination while CARRYING yields ARRIVED. Only
// exact coordinate equality counts.
func (s *Service) AdvanceOnCoordinate(ctx context.Context, tx pgx.Tx, chairID types.ID, c types.Coordinate) error {
	st := s.store.WithTx(tx)
	r, err := st.LatestByChair(ctx, chairID)
	if err != nil || r == nil {
		return err
	}
	current, err := st.LatestStatus(ctx, r.ID)
	if err != nil {
		return err
	}
	if Terminal(current) {
		return nil
	}
	switch {
	case current == StatusEnroute && c == r.Pickup:
		return st.AppendStatus(ctx, r.ID, StatusPickup)
	case current == StatusCarrying && c == r.Destination:
		return st.AppendStatus(ctx, r.ID, StatusArrived)
	}
	return nil
}

// Stats summarises a chair's finished work. A ride counts only once its
// log holds the full CARRYING, ARRIVED, COMPLETED tail.
type Stats struct {
	TotalRides    int     `json:"total_rides_count"`
	EvaluationAvg float64 `json:"total_evaluation_avg"`
}

// ChairStats computes the summary from the given store; pass a tx-bound
// store to read it inside a transaction.
func ChairStats(ctx context.Context, st *Store, chairID types.ID) (Stats, error) {
	rides, err := st.ListByChairDesc(ctx, chairID)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	var sum int
	for _, r := range rides {
		history, err := st.StatusHistory(ctx, r.ID)
		if err != nil {
			return Stats{}, err
		}
		var pickedUp, arrived, completed bool
		for _, e := range history {
			switch e.Status {
			case StatusCarrying:
				pickedUp = true
			case StatusArrived:
				arrived = true
			case StatusCompleted:
				completed = true
			}
		}
		if !pickedUp || !arrived || !completed || r.Evaluation == nil {
			continue
		}
		stats.TotalRides++
		sum += *r.Evaluation
	}
	if stats.TotalRides > 0 {
		stats.EvaluationAvg = float64(sum) / float64(stats.TotalRides)
	}
	return stats, nil
}

// CompletedRide pairs a finished ride with its coupon-adjusted fare.
type CompletedRide struct {
	Ride *Ride
	Fare int
}

// CompletedByUser lists the user's completed rides, newest first.
func (s *Service) CompletedByUser(ctx context.Context, userID types.ID) ([]CompletedRide, error) {
	rides, err := s.store.ListByUserDesc(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]CompletedRide, 0, len(rides))
	for _, r := range rides {
		status, err := s.store.LatestStatus(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if status != StatusCompleted {
			continue
		}
		fare, err := s.FareForRide(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, CompletedRide{Ride: r, Fare: fare})
	}
	return out, nil
}

// FareForRide is the authoritative fare: the ride's stored coordinates
// with the discount of whatever coupon the ride consumed.
func (s *Service) FareForRide(ctx context.Context, r *Ride) (int, error) {
	discount, err := s.coupons.DiscountForRide(ctx, r.ID)
	if err != nil {
		return 0, err
	}
	return pricing.DiscountedFare(r.Pickup, r.Destination, discount), nil
}
