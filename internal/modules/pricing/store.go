// README: Coupon ledger. Each coupon belongs to one user, carries a fixed
// discount and is consumed by at most one ride.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"rideon/internal/infra"
	"rideon/internal/types"
)

type Coupon struct {
	UserID    types.ID
	Code      string
	Discount  int
	CreatedAt time.Time
	UsedBy    *types.ID
}

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

func (s *Store) Grant(ctx context.Context, userID types.ID, code string, discount int) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO coupons (user_id, code, discount) VALUES ($1, $2, $3)`,
		userID, code, discount)
	if err != nil {
		return fmt.Errorf("grant coupon: %w", err)
	}
	return nil
}

// CountByCodeForUpdate locks every grant of a code and returns how many
// exist. Used to enforce the per-invitation grant cap.
func (s *Store) CountByCodeForUpdate(ctx context.Context, code string) (int, error) {
	rows, err := s.q.Query(ctx,
		`SELECT user_id FROM coupons WHERE code = $1 FOR UPDATE`, code)
	if err != nil {
		return 0, fmt.Errorf("count coupons by code: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

// NextDiscount reports the discount the user's next ride would receive,
// without locking. A concurrent bind can invalidate the answer; estimate
// callers accept that.
func (s *Store) NextDiscount(ctx context.Context, userID types.ID) (int, error) {
	var discount int
	err := s.q.QueryRow(ctx,
		`SELECT discount FROM coupons
		 WHERE user_id = $1 AND used_by IS NULL
		 ORDER BY CASE WHEN code = $2 THEN 0 ELSE 1 END, created_at
		 LIMIT 1`,
		userID, FirstRideCouponCode).Scan(&discount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("next discount: %w", err)
	}
	return discount, nil
}

// BindToRide consumes the user's best unused coupon for the given ride,
// locking the chosen row so two concurrent rides cannot share it. A first
// ride prefers the registration coupon, then the oldest unused one. Binding
// nothing is not an error.
func (s *Store) BindToRide(ctx context.Context, userID, rideID types.ID, firstRide bool) error {
	var code string
	var err error
	if firstRide {
		err = s.q.QueryRow(ctx,
			`SELECT code FROM coupons
			 WHERE user_id = $1 AND code = $2 AND used_by IS NULL
			 FOR UPDATE`,
			userID, FirstRideCouponCode).Scan(&code)
		if errors.Is(err, pgx.ErrNoRows) {
			err = s.oldestUnusedForUpdate(ctx, userID, &code)
		}
	} else {
		err = s.oldestUnusedForUpdate(ctx, userID, &code)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select coupon for ride: %w", err)
	}
	_, err = s.q.Exec(ctx,
		`UPDATE coupons SET used_by = $1 WHERE user_id = $2 AND code = $3`,
		rideID, userID, code)
	if err != nil {
		return fmt.Errorf("bind coupon to ride: %w", err)
	}
	return nil
}

func (s *Store) oldestUnusedForUpdate(ctx context.Context, userID types.ID, code *string) error {
	return s.q.QueryRow(ctx,
		`SELECT code FROM coupons
		 WHERE user_id = $1 AND used_by IS NULL
		 ORDER BY created_at LIMIT 1
		 FOR UPDATE`,
		userID).Scan(code)
}

// DiscountForRide returns the discount of the coupon bound to a ride,
// or zero when the ride consumed none.
func (s *Store) DiscountForRide(ctx context.Context, rideID types.ID) (int, error) {
	var discount int
	err := s.q.QueryRow(ctx,
		`SELECT discount FROM coupons WHERE used_by = $1`, rideID).Scan(&discount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("discount for ride: %w", err)
	}
	return discount, nil
}
