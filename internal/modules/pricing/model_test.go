package pricing

import (
	"testing"

	"rideon/internal/types"
)

func TestFare(t *testing.T) {
	tests := []struct {
		name   string
		pickup types.Coordinate
		dest   types.Coordinate
		want   int
	}{
		{
			name:   "ten blocks",
			pickup: types.Coordinate{Latitude: 0, Longitude: 0},
			dest:   types.Coordinate{Latitude: 4, Longitude: 6},
			want:   500 + 100*10,
		},
		{
			name:   "same point still charges the initial fare",
			pickup: types.Coordinate{Latitude: 3, Longitude: 3},
			dest:   types.Coordinate{Latitude: 3, Longitude: 3},
			want:   500,
		},
		{
			name:   "negative coordinates",
			pickup: types.Coordinate{Latitude: -5, Longitude: 2},
			dest:   types.Coordinate{Latitude: 5, Longitude: -3},
			want:   500 + 100*15,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fare(tt.pickup, tt.dest); got != tt.want {
				t.Fatalf("Fare() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDiscountedFare(t *testing.T) {
	pickup := types.Coordinate{Latitude: 0, Longitude: 0}
	dest := types.Coordinate{Latitude: 0, Longitude: 10}

	tests := []struct {
		name     string
		discount int
		want     int
	}{
		{name: "no discount", discount: 0, want: 1500},
		{name: "partial discount", discount: 300, want: 1200},
		{name: "discount equals metered fare", discount: 1000, want: 500},
		{name: "discount larger than metered fare never touches the base", discount: FirstRideCouponDiscount, want: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DiscountedFare(pickup, dest, tt.discount); got != tt.want {
				t.Fatalf("DiscountedFare(discount=%d) = %d, want %d", tt.discount, got, tt.want)
			}
		})
	}
}
