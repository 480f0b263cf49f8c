package notification

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"rideon/internal/config"
	"rideon/internal/modules/account"
	"rideon/internal/modules/chair"
	"rideon/internal/modules/ride"
	"rideon/internal/types"
)

// fakeStore keeps one user, one chair and a ride with an ordered status
// log in memory. InTx runs the callback directly; watermark writes mutate
// the fake immediately, which is close enough for these tests.
type fakeStore struct {
	ride   *ride.Ride
	events []*ride.StatusEvent
	user   *account.User
	chair  *chair.Chair
}

func (f *fakeStore) InTx(ctx context.Context, fn func(View) error) error {
	return fn(f)
}

func (f *fakeStore) LockChair(ctx context.Context, chairID types.ID) error { return nil }

func (f *fakeStore) LatestRideByUser(ctx context.Context, userID types.ID) (*ride.Ride, error) {
	if f.ride == nil || f.ride.UserID != userID {
		return nil, nil
	}
	return f.ride, nil
}

func (f *fakeStore) LatestRideByChair(ctx context.Context, chairID types.ID) (*ride.Ride, error) {
	if f.ride == nil || f.ride.ChairID == nil || *f.ride.ChairID != chairID {
		return nil, nil
	}
	return f.ride, nil
}

func (f *fakeStore) LatestStatus(ctx context.Context, rideID types.ID) (ride.Status, error) {
	if len(f.events) == 0 {
		return "", ride.ErrNotFound
	}
	return f.events[len(f.events)-1].Status, nil
}

func (f *fakeStore) OldestUnsent(ctx context.Context, rideID types.ID, ch ride.Channel) (*ride.StatusEvent, error) {
	for _, e := range f.events {
		if sentAt(e, ch) == nil {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MarkSent(ctx context.Context, eventID types.ID, ch ride.Channel) error {
	now := time.Now()
	for _, e := range f.events {
		if e.ID == eventID {
			if ch == ride.ChannelApp {
				e.AppSentAt = &now
			} else {
				e.ChairSentAt = &now
			}
		}
	}
	return nil
}

func (f *fakeStore) RideDiscount(ctx context.Context, rideID types.ID) (int, error) { return 0, nil }

func (f *fakeStore) UserForShare(ctx context.Context, userID types.ID) (*account.User, error) {
	return f.user, nil
}

func (f *fakeStore) Chair(ctx context.Context, chairID types.ID) (*chair.Chair, error) {
	return f.chair, nil
}

func (f *fakeStore) ChairStats(ctx context.Context, chairID types.ID) (ride.Stats, error) {
	return ride.Stats{}, nil
}

func sentAt(e *ride.StatusEvent, ch ride.Channel) *time.Time {
	if ch == ride.ChannelApp {
		return e.AppSentAt
	}
	return e.ChairSentAt
}

func (f *fakeStore) appendEvent(status ride.Status) {
	f.events = append(f.events, &ride.StatusEvent{
		ID:        types.ID("evt-" + string(rune('a'+len(f.events)))),
		RideID:    f.ride.ID,
		Status:    status,
		CreatedAt: time.Now(),
	})
}

type fakeMatcher struct {
	calls int
	onRun func()
}

func (m *fakeMatcher) MatchOne(ctx context.Context) (bool, error) {
	m.calls++
	if m.onRun != nil {
		m.onRun()
	}
	return m.onRun != nil, nil
}

func newTestService(store TxRunner, matcher Matcher) *Service {
	return NewService(store, matcher, config.NotificationConfig{RetryAfterMS: 30}, slog.Default())
}

func rideFixture(chairID *types.ID) *ride.Ride {
	return &ride.Ride{
		ID:          "ride-1",
		UserID:      "user-1",
		ChairID:     chairID,
		Pickup:      types.Coordinate{Latitude: 0, Longitude: 0},
		Destination: types.Coordinate{Latitude: 0, Longitude: 10},
	}
}

func TestAppPollDeliversEventsInOrderExactlyOnce(t *testing.T) {
	store := &fakeStore{ride: rideFixture(nil)}
	store.appendEvent(ride.StatusMatching)
	store.appendEvent(ride.StatusEnroute)
	svc := newTestService(store, &fakeMatcher{})

	for i, want := range []ride.Status{ride.StatusMatching, ride.StatusEnroute} {
		n, err := svc.AppPoll(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		if n.Snapshot == nil || n.Snapshot.Status != want {
			t.Fatalf("poll %d: got %+v, want status %s", i, n.Snapshot, want)
		}
		if n.RetryAfterMS != 30 {
			t.Fatalf("poll %d: retry_after = %d, want 30", i, n.RetryAfterMS)
		}
	}

	// Caught up: the latest status is repeated without advancing anything.
	for i := 0; i < 2; i++ {
		n, err := svc.AppPoll(context.Background(), "user-1")
		if err != nil {
			t.Fatal(err)
		}
		if n.Snapshot.Status != ride.StatusEnroute {
			t.Fatalf("caught-up poll returned %s", n.Snapshot.Status)
		}
	}
}

func TestAppPollComputesDiscountedFare(t *testing.T) {
	store := &fakeStore{ride: rideFixture(nil)}
	store.appendEvent(ride.StatusMatching)
	svc := newTestService(store, &fakeMatcher{})

	n, err := svc.AppPoll(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if n.Snapshot.Fare != 1500 {
		t.Fatalf("fare = %d, want 1500", n.Snapshot.Fare)
	}
}

func TestAppPollWithoutRides(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeMatcher{})
	n, err := svc.AppPoll(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if n.Snapshot != nil {
		t.Fatalf("expected empty notification, got %+v", n.Snapshot)
	}
}

func TestChairPollTriggersMatchingWhenIdle(t *testing.T) {
	chairID := types.ID("chair-1")
	store := &fakeStore{user: &account.User{ID: "user-1", Firstname: "Ada", Lastname: "L"}}
	matcher := &fakeMatcher{onRun: func() {
		store.ride = rideFixture(&chairID)
		store.appendEvent(ride.StatusMatching)
	}}
	svc := newTestService(store, matcher)

	n, err := svc.ChairPoll(context.Background(), chairID)
	if err != nil {
		t.Fatal(err)
	}
	if matcher.calls != 1 {
		t.Fatalf("matcher ran %d times, want 1", matcher.calls)
	}
	if n.Snapshot == nil || n.Snapshot.Status != ride.StatusMatching {
		t.Fatalf("expected freshly matched ride, got %+v", n.Snapshot)
	}
}

func TestChairPollDeliversCompletionBeforeGoingIdle(t *testing.T) {
	chairID := types.ID("chair-1")
	store := &fakeStore{ride: rideFixture(&chairID), user: &account.User{ID: "user-1"}}
	store.appendEvent(ride.StatusCompleted)
	matcher := &fakeMatcher{}
	svc := newTestService(store, matcher)

	n, err := svc.ChairPoll(context.Background(), chairID)
	if err != nil {
		t.Fatal(err)
	}
	if n.Snapshot == nil || n.Snapshot.Status != ride.StatusCompleted {
		t.Fatalf("expected COMPLETED delivery, got %+v", n.Snapshot)
	}
	if matcher.calls != 0 {
		t.Fatal("matching must not run before the completion is delivered")
	}

	// Next poll sees a caught-up completed ride and frees the chair.
	if _, err := svc.ChairPoll(context.Background(), chairID); err != nil {
		t.Fatal(err)
	}
	if matcher.calls != 1 {
		t.Fatalf("matcher ran %d times after caught-up poll, want 1", matcher.calls)
	}
}
