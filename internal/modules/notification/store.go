// README: PostgreSQL-backed poll window composed from the module stores.
package notification

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideon/internal/modules/account"
	"rideon/internal/modules/chair"
	"rideon/internal/modules/pricing"
	"rideon/internal/modules/ride"
	"rideon/internal/types"
)

type Store struct {
	db      *pgxpool.Pool
	rides   *ride.Store
	chairs  *chair.Store
	users   *account.Store
	coupons *pricing.Store
}

func NewStore(db *pgxpool.Pool, rides *ride.Store, chairs *chair.Store, users *account.Store, coupons *pricing.Store) *Store {
	return &Store{db: db, rides: rides, chairs: chairs, users: users, coupons: coupons}
}

func (s *Store) InTx(ctx context.Context, fn func(View) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	v := &txView{
		tx:      tx,
		rides:   s.rides.WithTx(tx),
		chairs:  s.chairs.WithTx(tx),
		users:   s.users.WithTx(tx),
		coupons: s.coupons.WithTx(tx),
	}
	if err := fn(v); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txView struct {
	tx      pgx.Tx
	rides   *ride.Store
	chairs  *chair.Store
	users   *account.Store
	coupons *pricing.Store
}

func (v *txView) LockChair(ctx context.Context, chairID types.ID) error {
	_, err := v.chairs.ByIDForUpdate(ctx, chairID)
	return err
}

func (v *txView) LatestRideByUser(ctx context.Context, userID types.ID) (*ride.Ride, error) {
	return v.rides.LatestByUser(ctx, userID)
}

func (v *txView) LatestRideByChair(ctx context.Context, chairID types.ID) (*ride.Ride, error) {
	return v.rides.LatestByChair(ctx, chairID)
}

func (v *txView) LatestStatus(ctx context.Context, rideID types.ID) (ride.Status, error) {
	return v.rides.LatestStatus(ctx, rideID)
}

func (v *txView) OldestUnsent(ctx context.Context, rideID types.ID, ch ride.Channel) (*ride.StatusEvent, error) {
	return v.rides.OldestUnsent(ctx, rideID, ch)
}

func (v *txView) MarkSent(ctx context.Context, eventID types.ID, ch ride.Channel) error {
	return v.rides.MarkSent(ctx, eventID, ch)
}

func (v *txView) RideDiscount(ctx context.Context, rideID types.ID) (int, error) {
	return v.coupons.DiscountForRide(ctx, rideID)
}

func (v *txView) UserForShare(ctx context.Context, userID types.ID) (*account.User, error) {
	return v.users.UserByIDForShare(ctx, userID)
}

func (v *txView) Chair(ctx context.Context, chairID types.ID) (*chair.Chair, error) {
	return v.chairs.ByID(ctx, chairID)
}

func (v *txView) ChairStats(ctx context.Context, chairID types.ID) (ride.Stats, error) {
	return ride.ChairStats(ctx, v.rides, chairID)
}
