package ride

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"matching to enroute", StatusMatching, StatusEnroute, true},
		{"enroute to pickup", StatusEnroute, StatusPickup, true},
		{"pickup to carrying", StatusPickup, StatusCarrying, true},
		{"carrying to arrived", StatusCarrying, StatusArrived, true},
		{"arrived to completed", StatusArrived, StatusCompleted, true},
		{"no skipping ahead", StatusMatching, StatusPickup, false},
		{"carrying before pickup", StatusEnroute, StatusCarrying, false},
		{"no going backwards", StatusCarrying, StatusPickup, false},
		{"completed is terminal", StatusCompleted, StatusEnroute, false},
		{"canceled is terminal", StatusCanceled, StatusEnroute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusMatching, StatusEnroute, StatusPickup, StatusCarrying, StatusArrived} {
		if Terminal(s) {
			t.Errorf("Terminal(%s) = true, want false", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCanceled} {
		if !Terminal(s) {
			t.Errorf("Terminal(%s) = false, want true", s)
		}
	}
}
