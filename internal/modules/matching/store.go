// README: Matching repository backed by PostgreSQL row locks.
package matching

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideon/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// InTx implements TxRunner over a single database transaction.
func (s *Store) InTx(ctx context.Context, fn func(Repo) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(&txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) OldestUnmatched(ctx context.Context) (types.ID, bool, error) {
	var id types.ID
	err := r.tx.QueryRow(ctx,
		`SELECT id FROM rides WHERE chair_id IS NULL
		 ORDER BY created_at LIMIT 1
		 FOR UPDATE`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (r *txRepo) RandomActiveChair(ctx context.Context) (types.ID, bool, error) {
	var id types.ID
	err := r.tx.QueryRow(ctx,
		`SELECT id FROM chairs WHERE is_active ORDER BY random() LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// ChairFree treats a chair as free when none of its rides has a latest
// status other than COMPLETED.
func (r *txRepo) ChairFree(ctx context.Context, chairID types.ID) (bool, error) {
	var busy bool
	err := r.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides rd
			WHERE rd.chair_id = $1
			  AND (SELECT rs.status FROM ride_statuses rs
			       WHERE rs.ride_id = rd.id
			       ORDER BY rs.created_at DESC LIMIT 1) <> 'COMPLETED'
		)`, chairID).Scan(&busy)
	if err != nil {
		return false, err
	}
	return !busy, nil
}

func (r *txRepo) Assign(ctx context.Context, rideID, chairID types.ID) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE rides SET chair_id = $1, updated_at = now() WHERE id = $2`,
		chairID, rideID)
	return err
}
