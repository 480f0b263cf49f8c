package matching

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"rideon/internal/config"
	"rideon/internal/types"
)

// fakeRepo runs the engine against in-memory state. Chairs are drawn in
// slice order rather than randomly, which keeps probes deterministic.
type fakeRepo struct {
	waiting  []types.ID
	chairs   []types.ID
	busy     map[types.ID]bool
	next     int
	assigned map[types.ID]types.ID
}

func newFakeRepo(waiting, chairs []types.ID, busy map[types.ID]bool) *fakeRepo {
	if busy == nil {
		busy = map[types.ID]bool{}
	}
	return &fakeRepo{waiting: waiting, chairs: chairs, busy: busy, assigned: map[types.ID]types.ID{}}
}

func (f *fakeRepo) InTx(ctx context.Context, fn func(Repo) error) error {
	return fn(f)
}

func (f *fakeRepo) OldestUnmatched(ctx context.Context) (types.ID, bool, error) {
	if len(f.waiting) == 0 {
		return "", false, nil
	}
	return f.waiting[0], true, nil
}

func (f *fakeRepo) RandomActiveChair(ctx context.Context) (types.ID, bool, error) {
	if len(f.chairs) == 0 {
		return "", false, nil
	}
	id := f.chairs[f.next%len(f.chairs)]
	f.next++
	return id, true, nil
}

func (f *fakeRepo) ChairFree(ctx context.Context, chairID types.ID) (bool, error) {
	return !f.busy[chairID], nil
}

func (f *fakeRepo) Assign(ctx context.Context, rideID, chairID types.ID) error {
	f.assigned[rideID] = chairID
	f.waiting = f.waiting[1:]
	f.busy[chairID] = true
	return nil
}

func testService(repo TxRunner) *Service {
	cfg := config.MatchingConfig{ProbeAttempts: 10}
	return NewService(repo, cfg, slog.Default())
}

func TestMatchOneAssignsFreeChair(t *testing.T) {
	repo := newFakeRepo(
		[]types.ID{"ride-1"},
		[]types.ID{"chair-a", "chair-b", "chair-c"},
		map[types.ID]bool{"chair-a": true, "chair-b": true},
	)
	matched, err := testService(repo).MatchOne(context.Background())
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if !matched {
		t.Fatal("expected a match")
	}
	if got := repo.assigned["ride-1"]; got != "chair-c" {
		t.Fatalf("ride assigned to %q, want chair-c", got)
	}
}

func TestMatchOneGivesUpWhenAllChairsBusy(t *testing.T) {
	repo := newFakeRepo(
		[]types.ID{"ride-1"},
		[]types.ID{"chair-a", "chair-b"},
		map[types.ID]bool{"chair-a": true, "chair-b": true},
	)
	matched, err := testService(repo).MatchOne(context.Background())
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if matched {
		t.Fatal("expected no match")
	}
	if len(repo.waiting) != 1 {
		t.Fatal("ride should still be waiting")
	}
	if repo.next != 10 {
		t.Fatalf("expected exactly 10 probes, got %d", repo.next)
	}
}

func TestMatchOneNoWaitingRides(t *testing.T) {
	repo := newFakeRepo(nil, []types.ID{"chair-a"}, nil)
	matched, err := testService(repo).MatchOne(context.Background())
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if matched {
		t.Fatal("expected no match with an empty queue")
	}
	if repo.next != 0 {
		t.Fatal("no chairs should be probed when nothing is waiting")
	}
}

func TestMatchOneNoActiveChairs(t *testing.T) {
	repo := newFakeRepo([]types.ID{"ride-1"}, nil, nil)
	matched, err := testService(repo).MatchOne(context.Background())
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if matched {
		t.Fatal("expected no match without active chairs")
	}
}

func TestMatchOnePropagatesRepoErrors(t *testing.T) {
	repo := &errRepo{err: errors.New("connection reset")}
	if _, err := testService(repo).MatchOne(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type errRepo struct {
	err error
}

func (e *errRepo) InTx(ctx context.Context, fn func(Repo) error) error { return fn(e) }
func (e *errRepo) OldestUnmatched(ctx context.Context) (types.ID, bool, error) {
	return "", false, e.err
}
func (e *errRepo) RandomActiveChair(ctx context.Context) (types.ID, bool, error) {
	return "", false, e.err
}
func (e *errRepo) ChairFree(ctx context.Context, chairID types.ID) (bool, error) {
	return false, e.err
}
func (e *errRepo) Assign(ctx context.Context, rideID, chairID types.ID) error { return e.err }
