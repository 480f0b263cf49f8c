package chair

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideon/internal/modules/account"
	"rideon/internal/modules/pricing"
	"rideon/internal/modules/ride"
	"rideon/internal/types"
)

var (
	ErrNotFound     = errors.New("chair not found")
	ErrInvalidToken = errors.New("invalid chair register token")
	ErrBadRequest   = errors.New("bad request")
)

// OwnerDirectory resolves the owner a chair registers under.
type OwnerDirectory interface {
	OwnerByChairRegisterToken(ctx context.Context, token string) (*account.Owner, error)
}

// RideAdvancer applies coordinate-driven ride transitions inside the
// location write transaction.
type RideAdvancer interface {
	AdvanceOnCoordinate(ctx context.Context, tx pgx.Tx, chairID types.ID, c types.Coordinate) error
}

// RideReader is the slice of ride data the fleet side needs: occupancy
// for nearby lookups and completed rides for owner sales.
type RideReader interface {
	HasActiveByChair(ctx context.Context, chairID types.ID) (bool, error)
	ListByChairBetween(ctx context.Context, chairID types.ID, since, until time.Time) ([]*ride.Ride, error)
	LatestStatus(ctx context.Context, rideID types.ID) (ride.Status, error)
}

type Service struct {
	db      *pgxpool.Pool
	store   *Store
	owners  OwnerDirectory
	advance RideAdvancer
	rides   RideReader
	log     *slog.Logger
}

func NewService(db *pgxpool.Pool, store *Store, owners OwnerDirectory, advance RideAdvancer, rides RideReader, log *slog.Logger) *Service {
	return &Service{db: db, store: store, owners: owners, advance: advance, rides: rides, log: log}
}

type RegisterCommand struct {
	Name          string
	Model         string
	RegisterToken string
}

type Registered struct {
	ID          types.ID
	OwnerID     types.ID
	AccessToken string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (Registered, error) {
	if cmd.Name == "" || cmd.Model == "" || cmd.RegisterToken == "" {
		return Registered{}, ErrBadRequest
	}
	owner, err := s.owners.OwnerByChairRegisterToken(ctx, cmd.RegisterToken)
	if errors.Is(err, account.ErrNotFound) {
		return Registered{}, ErrInvalidToken
	}
	if err != nil {
		return Registered{}, err
	}
	c := &Chair{
		ID:          types.ID(uuid.NewString()),
		OwnerID:     owner.ID,
		Name:        cmd.Name,
		Model:       cmd.Model,
		AccessToken: secureToken(32),
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return Registered{}, err
	}
	return Registered{ID: c.ID, OwnerID: owner.ID, AccessToken: c.AccessToken}, nil
}

func (s *Service) SetActivity(ctx context.Context, chairID types.ID, active bool) error {
	return s.store.SetActive(ctx, chairID, active)
}

// RecordCoordinate persists a location sample and lets the ride lifecycle
// react to it in the same transaction, so a crash can never record a
// position without its transition or vice versa.
func (s *Service) RecordCoordinate(ctx context.Context, chairID types.ID, c types.Coordinate) (time.Time, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback(ctx)

	sample, err := s.store.WithTx(tx).AppendLocation(ctx, chairID, c)
	if err != nil {
		return time.Time{}, err
	}
	if err := s.advance.AdvanceOnCoordinate(ctx, tx, chairID, c); err != nil {
		return time.Time{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}

	if err := s.store.CacheLocation(ctx, chairID, c); err != nil {
		s.log.Warn("location cache write failed", "chair_id", chairID, "error", err)
	}
	return sample.CreatedAt, nil
}

type NearbyChair struct {
	ID      types.ID
	Name    string
	Model   string
	Current types.Coordinate
}

// Nearby lists active, unoccupied chairs within the given Manhattan
// distance of the center.
func (s *Service) Nearby(ctx context.Context, center types.Coordinate, distance int) ([]NearbyChair, time.Time, error) {
	retrievedAt := time.Now()
	chairs, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	out := make([]NearbyChair, 0, len(chairs))
	for _, c := range chairs {
		busy, err := s.rides.HasActiveByChair(ctx, c.ID)
		if err != nil {
			return nil, time.Time{}, err
		}
		if busy {
			continue
		}
		loc, err := s.store.CachedLocation(ctx, c.ID)
		if err != nil {
			return nil, time.Time{}, err
		}
		if loc == nil || loc.DistanceTo(center) > distance {
			continue
		}
		out = append(out, NearbyChair{ID: c.ID, Name: c.Name, Model: c.Model, Current: *loc})
	}
	return out, retrievedAt, nil
}

// Get returns a chair by id.
func (s *Service) Get(ctx context.Context, id types.ID) (*Chair, error) {
	return s.store.ByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Chair, error) {
	return s.store.ByOwner(ctx, ownerID)
}

// TotalDistanceByOwner aggregates how far each of the owner's chairs has
// moved, from consecutive location samples.
func (s *Service) TotalDistanceByOwner(ctx context.Context, ownerID types.ID) (map[types.ID]DistanceSummary, error) {
	return s.store.DistanceSummaryByOwner(ctx, ownerID)
}

type ChairSales struct {
	ID    types.ID
	Name  string
	Sales int
}

type ModelSales struct {
	Model string
	Sales int
}

type OwnerSales struct {
	TotalSales int
	Chairs     []ChairSales
	Models     []ModelSales
}

// SalesByOwner sums the undiscounted fares of completed rides per chair
// and per chair model inside the window.
func (s *Service) SalesByOwner(ctx context.Context, ownerID types.ID, since, until time.Time) (OwnerSales, error) {
	chairs, err := s.store.ByOwner(ctx, ownerID)
	if err != nil {
		return OwnerSales{}, err
	}
	out := OwnerSales{Chairs: make([]ChairSales, 0, len(chairs))}
	modelSales := map[string]int{}
	var models []string
	for _, c := range chairs {
		rides, err := s.rides.ListByChairBetween(ctx, c.ID, since, until)
		if err != nil {
			return OwnerSales{}, err
		}
		sales := 0
		for _, r := range rides {
			status, err := s.rides.LatestStatus(ctx, r.ID)
			if err != nil {
				return OwnerSales{}, err
			}
			if status != ride.StatusCompleted {
				continue
			}
			sales += pricing.Fare(r.Pickup, r.Destination)
		}
		out.TotalSales += sales
		out.Chairs = append(out.Chairs, ChairSales{ID: c.ID, Name: c.Name, Sales: sales})
		if _, seen := modelSales[c.Model]; !seen {
			models = append(models, c.Model)
		}
		modelSales[c.Model] += sales
	}
	for _, m := range models {
		out.Models = append(out.Models, ModelSales{Model: m, Sales: modelSales[m]})
	}
	return out, nil
}

func secureToken(bytes int) string {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
