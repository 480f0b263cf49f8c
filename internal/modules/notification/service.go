// README: Notification dispatcher. Both the requester app and the chair
// poll for ride updates; delivery is tracked with a per-channel watermark
// on the status log so each event is handed out once, in order.
package notification

import (
	"context"
	"log/slog"

	"rideon/internal/config"
	"rideon/internal/modules/account"
	"rideon/internal/modules/chair"
	"rideon/internal/modules/pricing"
	"rideon/internal/modules/ride"
	"rideon/internal/observability"
	"rideon/internal/types"
)

// View is one poll's transactional window over the stores.
type View interface {
	LockChair(ctx context.Context, chairID types.ID) error
	LatestRideByUser(ctx context.Context, userID types.ID) (*ride.Ride, error)
	LatestRideByChair(ctx context.Context, chairID types.ID) (*ride.Ride, error)
	LatestStatus(ctx context.Context, rideID types.ID) (ride.Status, error)
	OldestUnsent(ctx context.Context, rideID types.ID, ch ride.Channel) (*ride.StatusEvent, error)
	MarkSent(ctx context.Context, eventID types.ID, ch ride.Channel) error
	RideDiscount(ctx context.Context, rideID types.ID) (int, error)
	UserForShare(ctx context.Context, userID types.ID) (*account.User, error)
	Chair(ctx context.Context, chairID types.ID) (*chair.Chair, error)
	ChairStats(ctx context.Context, chairID types.ID) (ride.Stats, error)
}

// TxRunner runs fn against a View bound to one transaction. The watermark
// advances in the same transaction that reads the event, so a poll that
// fails to commit leaves the event undelivered.
type TxRunner interface {
	InTx(ctx context.Context, fn func(View) error) error
}

// Matcher is the matching engine hook fired when a free chair polls.
type Matcher interface {
	MatchOne(ctx context.Context) (bool, error)
}

// Snapshot is the ride state a poll hands back.
type Snapshot struct {
	Ride   *ride.Ride
	Status ride.Status
	Fare   int
	User   *account.User
	Chair  *chair.Chair
	Stats  ride.Stats
}

// Notification wraps an optional snapshot with the poll back-off hint.
type Notification struct {
	Snapshot     *Snapshot
	RetryAfterMS int
}

type Service struct {
	store   TxRunner
	matcher Matcher
	cfg     config.NotificationConfig
	log     *slog.Logger
}

func NewService(store TxRunner, matcher Matcher, cfg config.NotificationConfig, log *slog.Logger) *Service {
	return &Service{store: store, matcher: matcher, cfg: cfg, log: log}
}

// AppPoll returns the requester's oldest undelivered status event, or the
// current state when the app channel is caught up.
func (s *Service) AppPoll(ctx context.Context, userID types.ID) (*Notification, error) {
	var snap *Snapshot
	err := s.store.InTx(ctx, func(v View) error {
		r, err := v.LatestRideByUser(ctx, userID)
		if err != nil || r == nil {
			return err
		}
		event, status, err := s.pendingStatus(ctx, v, r.ID, ride.ChannelApp)
		if err != nil {
			return err
		}
		discount, err := v.RideDiscount(ctx, r.ID)
		if err != nil {
			return err
		}
		snap = &Snapshot{
			Ride:   r,
			Status: status,
			Fare:   pricing.DiscountedFare(r.Pickup, r.Destination, discount),
		}
		if r.ChairID != nil {
			if snap.Chair, err = v.Chair(ctx, *r.ChairID); err != nil {
				return err
			}
			if snap.Stats, err = v.ChairStats(ctx, *r.ChairID); err != nil {
				return err
			}
		}
		return s.deliver(ctx, v, event, ride.ChannelApp)
	})
	if err != nil {
		return nil, err
	}
	return &Notification{Snapshot: snap, RetryAfterMS: s.cfg.RetryAfterMS}, nil
}

// ChairPoll returns the chair's oldest undelivered status event. A poll
// from a free chair first runs a matching pass, so an idle fleet picks up
// waiting rides without waiting for the background sweep.
func (s *Service) ChairPoll(ctx context.Context, chairID types.ID) (*Notification, error) {
	snap, free, err := s.chairPollOnce(ctx, chairID)
	if err != nil {
		return nil, err
	}
	if free {
		if _, err := s.matcher.MatchOne(ctx); err != nil {
			s.log.Warn("poll-triggered matching failed", "chair_id", chairID, "error", err)
		} else if snap, _, err = s.chairPollOnce(ctx, chairID); err != nil {
			return nil, err
		}
	}
	return &Notification{Snapshot: snap, RetryAfterMS: s.cfg.RetryAfterMS}, nil
}

func (s *Service) chairPollOnce(ctx context.Context, chairID types.ID) (*Snapshot, bool, error) {
	var snap *Snapshot
	var free bool
	err := s.store.InTx(ctx, func(v View) error {
		if err := v.LockChair(ctx, chairID); err != nil {
			return err
		}
		r, err := v.LatestRideByChair(ctx, chairID)
		if err != nil {
			return err
		}
		if r == nil {
			free = true
			return nil
		}
		event, status, err := s.pendingStatus(ctx, v, r.ID, ride.ChannelChair)
		if err != nil {
			return err
		}
		if event == nil && status == ride.StatusCompleted {
			free = true
			return nil
		}
		user, err := v.UserForShare(ctx, r.UserID)
		if err != nil {
			return err
		}
		snap = &Snapshot{Ride: r, Status: status, User: user}
		return s.deliver(ctx, v, event, ride.ChannelChair)
	})
	if err != nil {
		return nil, false, err
	}
	return snap, free, nil
}

// pendingStatus picks the status a poll should report: the oldest unsent
// event when one exists, otherwise the latest already-delivered status.
func (s *Service) pendingStatus(ctx context.Context, v View, rideID types.ID, ch ride.Channel) (*ride.StatusEvent, ride.Status, error) {
	event, err := v.OldestUnsent(ctx, rideID, ch)
	if err != nil {
		return nil, "", err
	}
	if event != nil {
		return event, event.Status, nil
	}
	status, err := v.LatestStatus(ctx, rideID)
	if err != nil {
		return nil, "", err
	}
	return nil, status, nil
}

func (s *Service) deliver(ctx context.Context, v View, event *ride.StatusEvent, ch ride.Channel) error {
	if event == nil {
		return nil
	}
	if err := v.MarkSent(ctx, event.ID, ch); err != nil {
		return err
	}
	observability.NotificationsDeliveredTotal.WithLabelValues(string(ch)).Inc()
	return nil
}
