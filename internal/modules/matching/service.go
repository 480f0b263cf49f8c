// README: Matching engine: assigns the oldest waiting ride to a free chair
// found by bounded random probing.
package matching

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rideon/internal/config"
	"rideon/internal/observability"
	"rideon/internal/retry"
	"rideon/internal/types"
)

// Repo is the transactional view the engine works on. OldestUnmatched must
// lock the returned ride row so two passes never assign the same ride.
type Repo interface {
	OldestUnmatched(ctx context.Context) (types.ID, bool, error)
	RandomActiveChair(ctx context.Context) (types.ID, bool, error)
	ChairFree(ctx context.Context, chairID types.ID) (bool, error)
	Assign(ctx context.Context, rideID, chairID types.ID) error
}

// TxRunner runs fn against a Repo bound to one transaction, committing on
// nil and rolling back on error.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Repo) error) error
}

var (
	errChairBusy      = errors.New("probed chair is busy")
	errNoActiveChairs = errors.New("no active chairs")
)

type Service struct {
	repo TxRunner
	cfg  config.MatchingConfig
	log  *slog.Logger
}

func NewService(repo TxRunner, cfg config.MatchingConfig, log *slog.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log}
}

// MatchOne tries to assign the oldest waiting ride. Each probe draws a
// random active chair and checks whether it is free; after the configured
// number of failed probes the ride is left waiting for a later pass.
// It reports whether an assignment was made.
func (s *Service) MatchOne(ctx context.Context) (bool, error) {
	matched := false
	err := s.repo.InTx(ctx, func(r Repo) error {
		rideID, ok, err := r.OldestUnmatched(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		probeErr := retry.Do(ctx, s.cfg.ProbeAttempts, 0, func() error {
			chairID, ok, err := r.RandomActiveChair(ctx)
			if err != nil {
				return retry.Stop{Err: err}
			}
			if !ok {
				return retry.Stop{Err: errNoActiveChairs}
			}
			free, err := r.ChairFree(ctx, chairID)
			if err != nil {
				return retry.Stop{Err: err}
			}
			if !free {
				return errChairBusy
			}
			if err := r.Assign(ctx, rideID, chairID); err != nil {
				return retry.Stop{Err: err}
			}
			matched = true
			return nil
		})
		if probeErr != nil {
			if errors.Is(probeErr, retry.ErrExhausted) || errors.Is(probeErr, errNoActiveChairs) {
				observability.MatchProbesGiveUp.Inc()
				return nil
			}
			return probeErr
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if matched {
		observability.MatchesTotal.Inc()
	}
	return matched, nil
}

// RunSweep drains the waiting queue on a fixed interval until the context
// is cancelled. Each tick matches rides one by one so every assignment
// commits in its own transaction.
func (s *Service) RunSweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				matched, err := s.MatchOne(ctx)
				if err != nil {
					if ctx.Err() == nil {
						s.log.Error("matching sweep failed", "error", err)
					}
					break
				}
				if !matched {
					break
				}
			}
		}
	}
}
