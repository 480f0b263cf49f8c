// README: Ride store backed by PostgreSQL. Holds the rides table and the
// append-only status log that doubles as the notification outbox.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rideon/internal/infra"
	"rideon/internal/types"
)

type Store struct {
	q infra.Querier
}

func NewStore(q infra.Querier) *Store {
	return &Store{q: q}
}

// WithTx rebinds the store's queries to a transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{q: tx}
}

const rideColumns = `id, user_id, chair_id,
	pickup_latitude, pickup_longitude, destination_latitude, destination_longitude,
	evaluation, created_at, updated_at`

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var chairID *string
	err := row.Scan(&r.ID, &r.UserID, &chairID,
		&r.Pickup.Latitude, &r.Pickup.Longitude,
		&r.Destination.Latitude, &r.Destination.Longitude,
		&r.Evaluation, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if chairID != nil {
		id := types.ID(*chairID)
		r.ChairID = &id
	}
	return &r, nil
}

// LockUser takes the user's row lock, serializing ride creation per user
// so the one-active-ride rule holds under concurrent requests.
func (s *Store) LockUser(ctx context.Context, userID types.ID) error {
	var id types.ID
	err := s.q.QueryRow(ctx,
		`SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) Create(ctx context.Context, r *Ride) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO rides (id, user_id,
			pickup_latitude, pickup_longitude, destination_latitude, destination_longitude)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID,
		r.Pickup.Latitude, r.Pickup.Longitude,
		r.Destination.Latitude, r.Destination.Longitude)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := scanRide(s.q.QueryRow(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *Store) GetForUpdate(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := scanRide(s.q.QueryRow(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// LatestByUser returns the user's most recent ride, or nil when the user
// has none.
func (s *Store) LatestByUser(ctx context.Context, userID types.ID) (*Ride, error) {
	r, err := scanRide(s.q.QueryRow(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// LatestByChair returns the chair's most recently touched ride, or nil.
func (s *Store) LatestByChair(ctx context.Context, chairID types.ID) (*Ride, error) {
	r, err := scanRide(s.q.QueryRow(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE chair_id = $1 ORDER BY updated_at DESC LIMIT 1`,
		chairID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *Store) listRides(ctx context.Context, query string, args ...any) ([]*Ride, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListByChairDesc(ctx context.Context, chairID types.ID) ([]*Ride, error) {
	return s.listRides(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE chair_id = $1 ORDER BY updated_at DESC`, chairID)
}

func (s *Store) ListByUserDesc(ctx context.Context, userID types.ID) ([]*Ride, error) {
	return s.listRides(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *Store) ListByChairBetween(ctx context.Context, chairID types.ID, since, until time.Time) ([]*Ride, error) {
	return s.listRides(ctx,
		`SELECT `+rideColumns+` FROM rides
		 WHERE chair_id = $1 AND updated_at BETWEEN $2 AND $3
		 ORDER BY updated_at`, chairID, since, until)
}

func (s *Store) CountByUser(ctx context.Context, userID types.ID) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT count(*) FROM rides WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (s *Store) AssignChair(ctx context.Context, rideID, chairID types.ID) error {
	_, err := s.q.Exec(ctx,
		`UPDATE rides SET chair_id = $1, updated_at = now() WHERE id = $2`,
		chairID, rideID)
	if err != nil {
		return fmt.Errorf("assign chair: %w", err)
	}
	return nil
}

func (s *Store) SetEvaluation(ctx context.Context, rideID types.ID, evaluation int) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE rides SET evaluation = $1, updated_at = now() WHERE id = $2`,
		evaluation, rideID)
	if err != nil {
		return fmt.Errorf("set evaluation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendStatus adds a status log row. It never rewrites history; illegal
// transitions must be rejected before calling it.
func (s *Store) AppendStatus(ctx context.Context, rideID types.ID, status Status) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO ride_statuses (id, ride_id, status) VALUES ($1, $2, $3)`,
		uuid.NewString(), rideID, status)
	if err != nil {
		return fmt.Errorf("append ride status: %w", err)
	}
	return nil
}

func (s *Store) LatestStatus(ctx context.Context, rideID types.ID) (Status, error) {
	var st Status
	err := s.q.QueryRow(ctx,
		`SELECT status FROM ride_statuses WHERE ride_id = $1 ORDER BY created_at DESC LIMIT 1`,
		rideID).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return st, err
}

func (s *Store) StatusHistory(ctx context.Context, rideID types.ID) ([]StatusEvent, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, ride_id, status, created_at, app_sent_at, chair_sent_at
		 FROM ride_statuses WHERE ride_id = $1 ORDER BY created_at`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusEvent
	for rows.Next() {
		var e StatusEvent
		if err := rows.Scan(&e.ID, &e.RideID, &e.Status, &e.CreatedAt, &e.AppSentAt, &e.ChairSentAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// OldestUnsent returns the oldest status event not yet delivered on the
// channel, or nil when the channel is caught up.
func (s *Store) OldestUnsent(ctx context.Context, rideID types.ID, ch Channel) (*StatusEvent, error) {
	var e StatusEvent
	err := s.q.QueryRow(ctx,
		`SELECT id, ride_id, status, created_at, app_sent_at, chair_sent_at
		 FROM ride_statuses
		 WHERE ride_id = $1 AND `+ch.sentColumn()+` IS NULL
		 ORDER BY created_at LIMIT 1`, rideID).
		Scan(&e.ID, &e.RideID, &e.Status, &e.CreatedAt, &e.AppSentAt, &e.ChairSentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// MarkSent advances the channel watermark over one event.
func (s *Store) MarkSent(ctx context.Context, eventID types.ID, ch Channel) error {
	_, err := s.q.Exec(ctx,
		`UPDATE ride_statuses SET `+ch.sentColumn()+` = now() WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark status sent: %w", err)
	}
	return nil
}

// HasActiveByUser reports whether any ride of the user is not yet completed.
func (s *Store) HasActiveByUser(ctx context.Context, userID types.ID) (bool, error) {
	return s.hasActive(ctx, `user_id`, userID)
}

// HasActiveByChair reports whether any ride of the chair is not yet completed.
func (s *Store) HasActiveByChair(ctx context.Context, chairID types.ID) (bool, error) {
	return s.hasActive(ctx, `chair_id`, chairID)
}

func (s *Store) hasActive(ctx context.Context, column string, id types.ID) (bool, error) {
	var active bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides r
			WHERE r.`+column+` = $1
			  AND (SELECT rs.status FROM ride_statuses rs
			       WHERE rs.ride_id = r.id
			       ORDER BY rs.created_at DESC LIMIT 1) <> $2
		)`, id, StatusCompleted).Scan(&active)
	return active, err
}
