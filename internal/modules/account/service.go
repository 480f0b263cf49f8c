package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideon/internal/modules/pricing"
	"rideon/internal/types"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrNoPaymentToken     = errors.New("payment token not registered")
	ErrInvitationUnusable = errors.New("invitation code cannot be used")
	ErrBadRequest         = errors.New("bad request")
)

const maxInvitationUses = 3

type Service struct {
	db      *pgxpool.Pool
	store   *Store
	coupons *pricing.Store
}

func NewService(db *pgxpool.Pool, store *Store, coupons *pricing.Store) *Service {
	return &Service{db: db, store: store, coupons: coupons}
}

type RegisterUserCommand struct {
	Username       string
	Firstname      string
	Lastname       string
	DateOfBirth    string
	InvitationCode string
}

type RegisteredUser struct {
	ID             types.ID
	AccessToken    string
	InvitationCode string
}

// RegisterUser creates a requester account with a fresh registration
// coupon. A valid invitation code additionally grants the invitee a
// discount and the inviter a reward; the code is capped at three uses,
// enforced under row locks on the granted coupons.
func (s *Service) RegisterUser(ctx context.Context, cmd RegisterUserCommand) (RegisteredUser, error) {
	if cmd.Username == "" || cmd.Firstname == "" || cmd.Lastname == "" || cmd.DateOfBirth == "" {
		return RegisteredUser{}, ErrBadRequest
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return RegisteredUser{}, err
	}
	defer tx.Rollback(ctx)

	u := &User{
		ID:             types.ID(uuid.NewString()),
		Username:       cmd.Username,
		Firstname:      cmd.Firstname,
		Lastname:       cmd.Lastname,
		DateOfBirth:    cmd.DateOfBirth,
		AccessToken:    secureToken(32),
		InvitationCode: secureToken(15),
	}
	st := s.store.WithTx(tx)
	if err := st.InsertUser(ctx, u); err != nil {
		return RegisteredUser{}, err
	}

	coupons := s.coupons.WithTx(tx)
	if err := coupons.Grant(ctx, u.ID, pricing.FirstRideCouponCode, pricing.FirstRideCouponDiscount); err != nil {
		return RegisteredUser{}, err
	}

	if cmd.InvitationCode != "" {
		invCoupon := "INV_" + cmd.InvitationCode
		used, err := coupons.CountByCodeForUpdate(ctx, invCoupon)
		if err != nil {
			return RegisteredUser{}, err
		}
		if used >= maxInvitationUses {
			return RegisteredUser{}, ErrInvitationUnusable
		}
		inviter, err := st.UserByInvitationCode(ctx, cmd.InvitationCode)
		if errors.Is(err, ErrNotFound) {
			return RegisteredUser{}, ErrInvitationUnusable
		}
		if err != nil {
			return RegisteredUser{}, err
		}
		if err := coupons.Grant(ctx, u.ID, invCoupon, pricing.InvitationCouponDiscount); err != nil {
			return RegisteredUser{}, err
		}
		reward := fmt.Sprintf("RWD_%s_%d", cmd.InvitationCode, time.Now().UnixMilli())
		if err := coupons.Grant(ctx, inviter.ID, reward, pricing.RewardCouponDiscount); err != nil {
			return RegisteredUser{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return RegisteredUser{}, err
	}
	return RegisteredUser{ID: u.ID, AccessToken: u.AccessToken, InvitationCode: u.InvitationCode}, nil
}

type RegisteredOwner struct {
	ID                 types.ID
	AccessToken        string
	ChairRegisterToken string
}

func (s *Service) RegisterOwner(ctx context.Context, name string) (RegisteredOwner, error) {
	if name == "" {
		return RegisteredOwner{}, ErrBadRequest
	}
	o := &Owner{
		ID:                 types.ID(uuid.NewString()),
		Name:               name,
		AccessToken:        secureToken(32),
		ChairRegisterToken: secureToken(32),
	}
	if err := s.store.InsertOwner(ctx, o); err != nil {
		return RegisteredOwner{}, err
	}
	return RegisteredOwner{ID: o.ID, AccessToken: o.AccessToken, ChairRegisterToken: o.ChairRegisterToken}, nil
}

// Owner returns an owner by id.
func (s *Service) Owner(ctx context.Context, id types.ID) (*Owner, error) {
	return s.store.OwnerByID(ctx, id)
}

func (s *Service) AddPaymentToken(ctx context.Context, userID types.ID, token string) error {
	if token == "" {
		return ErrBadRequest
	}
	return s.store.InsertPaymentToken(ctx, userID, token)
}

func secureToken(bytes int) string {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
