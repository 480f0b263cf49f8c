// README: Fare constants and pure fare computation.
package pricing

import "rideon/internal/types"

const (
	InitialFare     = 500
	FarePerDistance = 100

	// FirstRideCouponCode is granted at registration and always consumed
	// by the requester's first ride when still unused.
	FirstRideCouponCode = "CP_NEW2024"

	FirstRideCouponDiscount  = 3000
	InvitationCouponDiscount = 1500
	RewardCouponDiscount     = 1000
)

// Quote is a fare with the discount that was applied to it.
type Quote struct {
	Fare     int
	Discount int
}

// MeteredFare is the distance-based part of the fare before any discount.
func MeteredFare(pickup, dest types.Coordinate) int {
	return FarePerDistance * pickup.DistanceTo(dest)
}

// Fare is the undiscounted total: initial fare plus metered fare.
func Fare(pickup, dest types.Coordinate) int {
	return InitialFare + MeteredFare(pickup, dest)
}

// DiscountedFare applies a coupon discount to the metered part only.
// The initial fare is never discounted.
func DiscountedFare(pickup, dest types.Coordinate, discount int) int {
	metered := MeteredFare(pickup, dest) - discount
	if metered < 0 {
		metered = 0
	}
	return InitialFare + metered
}
