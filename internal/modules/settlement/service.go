// README: Settlement coordinator: the evaluation call that closes a ride
// and charges the requester, all in one transaction.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideon/internal/infra"
	"rideon/internal/modules/account"
	"rideon/internal/modules/pricing"
	"rideon/internal/modules/ride"
	"rideon/internal/types"
)

var (
	ErrNotArrived    = errors.New("ride has not arrived yet")
	ErrBadEvaluation = errors.New("evaluation must be between 1 and 5")
)

const gatewayURLSetting = "payment_gateway_url"

type Service struct {
	db          *pgxpool.Pool
	rides       *ride.Store
	accounts    *account.Store
	coupons     *pricing.Store
	gateway     *Gateway
	fallbackURL string
}

func NewService(db *pgxpool.Pool, rides *ride.Store, accounts *account.Store, coupons *pricing.Store, gateway *Gateway, fallbackURL string) *Service {
	return &Service{db: db, rides: rides, accounts: accounts, coupons: coupons, gateway: gateway, fallbackURL: fallbackURL}
}

type EvaluateCommand struct {
	RideID     types.ID
	Evaluation int
}

// CompleteRide records the requester's evaluation, appends COMPLETED and
// charges the fare. The gateway call happens inside the transaction: if
// the charge fails the evaluation and the completion roll back together.
func (s *Service) CompleteRide(ctx context.Context, cmd EvaluateCommand) (time.Time, error) {
	if cmd.Evaluation < 1 || cmd.Evaluation > 5 {
		return time.Time{}, ErrBadEvaluation
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback(ctx)

	st := s.rides.WithTx(tx)
	r, err := st.Get(ctx, cmd.RideID)
	if err != nil {
		return time.Time{}, err
	}
	status, err := st.LatestStatus(ctx, r.ID)
	if err != nil {
		return time.Time{}, err
	}
	if status != ride.StatusArrived {
		return time.Time{}, ErrNotArrived
	}

	if err := st.SetEvaluation(ctx, r.ID, cmd.Evaluation); err != nil {
		return time.Time{}, err
	}
	if err := st.AppendStatus(ctx, r.ID, ride.StatusCompleted); err != nil {
		return time.Time{}, err
	}
	r, err = st.Get(ctx, r.ID)
	if err != nil {
		return time.Time{}, err
	}

	token, err := s.accounts.WithTx(tx).PaymentToken(ctx, r.UserID)
	if err != nil {
		return time.Time{}, err
	}
	discount, err := s.coupons.WithTx(tx).DiscountForRide(ctx, r.ID)
	if err != nil {
		return time.Time{}, err
	}
	fare := pricing.DiscountedFare(r.Pickup, r.Destination, discount)

	url, err := s.gatewayURL(ctx, tx)
	if err != nil {
		return time.Time{}, err
	}
	err = s.gateway.Pay(ctx, url, token, fare, func(ctx context.Context) (int, error) {
		return st.CountByUser(ctx, r.UserID)
	})
	if err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}
	return r.UpdatedAt, nil
}

// gatewayURL prefers the runtime setting so the gateway can be repointed
// without a restart, falling back to the configured default.
func (s *Service) gatewayURL(ctx context.Context, q infra.Querier) (string, error) {
	var url string
	err := q.QueryRow(ctx,
		`SELECT value FROM settings WHERE name = $1`, gatewayURLSetting).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.fallbackURL, nil
	}
	if err != nil {
		return "", err
	}
	return url, nil
}
