package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rideon/internal/infra"
	"rideon/internal/types"
)

type Store struct {
	q infra.Querier
}

func NewStore(q infra.Querier) *Store {
	return &Store{q: q}
}

// WithTx rebinds the store's queries to a transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{q: tx}
}

const userColumns = `id, username, firstname, lastname, date_of_birth,
	access_token, invitation_code, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Firstname, &u.Lastname, &u.DateOfBirth,
		&u.AccessToken, &u.InvitationCode, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) InsertUser(ctx context.Context, u *User) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO users (id, username, firstname, lastname, date_of_birth, access_token, invitation_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Firstname, u.Lastname, u.DateOfBirth, u.AccessToken, u.InvitationCode)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id types.ID) (*User, error) {
	return scanUser(s.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UserByIDForShare takes a shared lock so concurrent writers to the user's
// rides serialize against the read.
func (s *Store) UserByIDForShare(ctx context.Context, id types.ID) (*User, error) {
	return scanUser(s.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR SHARE`, id))
}

func (s *Store) UserByAccessToken(ctx context.Context, token string) (*User, error) {
	return scanUser(s.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE access_token = $1`, token))
}

func (s *Store) UserByInvitationCode(ctx context.Context, code string) (*User, error) {
	return scanUser(s.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE invitation_code = $1`, code))
}

const ownerColumns = `id, name, access_token, chair_register_token, created_at, updated_at`

func scanOwner(row pgx.Row) (*Owner, error) {
	var o Owner
	err := row.Scan(&o.ID, &o.Name, &o.AccessToken, &o.ChairRegisterToken, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) InsertOwner(ctx context.Context, o *Owner) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO owners (id, name, access_token, chair_register_token)
		VALUES ($1, $2, $3, $4)`,
		o.ID, o.Name, o.AccessToken, o.ChairRegisterToken)
	if err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	return nil
}

func (s *Store) OwnerByID(ctx context.Context, id types.ID) (*Owner, error) {
	return scanOwner(s.q.QueryRow(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE id = $1`, id))
}

func (s *Store) OwnerByAccessToken(ctx context.Context, token string) (*Owner, error) {
	return scanOwner(s.q.QueryRow(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE access_token = $1`, token))
}

func (s *Store) OwnerByChairRegisterToken(ctx context.Context, token string) (*Owner, error) {
	return scanOwner(s.q.QueryRow(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE chair_register_token = $1`, token))
}

func (s *Store) InsertPaymentToken(ctx context.Context, userID types.ID, token string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO payment_tokens (user_id, token) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token`,
		userID, token)
	if err != nil {
		return fmt.Errorf("insert payment token: %w", err)
	}
	return nil
}

// PaymentToken returns the user's gateway token, or ErrNoPaymentToken when
// none is registered.
func (s *Store) PaymentToken(ctx context.Context, userID types.ID) (string, error) {
	var token string
	err := s.q.QueryRow(ctx,
		`SELECT token FROM payment_tokens WHERE user_id = $1`, userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoPaymentToken
	}
	return token, err
}
