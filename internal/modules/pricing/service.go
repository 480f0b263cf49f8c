package pricing

import (
	"context"

	"rideon/internal/types"
)

// Service answers fare questions that do not belong to a ride yet.
type Service struct {
	coupons *Store
}

func NewService(coupons *Store) *Service {
	return &Service{coupons: coupons}
}

// Estimate quotes the fare for a prospective ride, applying the discount
// the user's next ride would get. The coupon is read without a lock; the
// quote is advisory and the ride-bound fare is authoritative.
func (s *Service) Estimate(ctx context.Context, userID types.ID, pickup, dest types.Coordinate) (Quote, error) {
	discount, err := s.coupons.NextDiscount(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	full := Fare(pickup, dest)
	fare := DiscountedFare(pickup, dest, discount)
	return Quote{Fare: fare, Discount: full - fare}, nil
}
