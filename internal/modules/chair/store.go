// README: Chair store backed by PostgreSQL, with Redis caching the latest
// location per chair for read-heavy nearby lookups.
package chair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"rideon/internal/infra"
	"rideon/internal/types"
)

type Store struct {
	q     infra.Querier
	cache *redis.Client
}

func NewStore(q infra.Querier, cache *redis.Client) *Store {
	return &Store{q: q, cache: cache}
}

// WithTx rebinds the SQL side of the store to a transaction. The cache is
// written outside transactions only.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{q: tx, cache: s.cache}
}

const chairColumns = `id, owner_id, name, model, is_active, access_token, created_at, updated_at`

func scanChair(row pgx.Row) (*Chair, error) {
	var c Chair
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Model, &c.IsActive,
		&c.AccessToken, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Insert(ctx context.Context, c *Chair) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO chairs (id, owner_id, name, model, is_active, access_token)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.OwnerID, c.Name, c.Model, c.IsActive, c.AccessToken)
	if err != nil {
		return fmt.Errorf("insert chair: %w", err)
	}
	return nil
}

func (s *Store) ByID(ctx context.Context, id types.ID) (*Chair, error) {
	return scanChair(s.q.QueryRow(ctx,
		`SELECT `+chairColumns+` FROM chairs WHERE id = $1`, id))
}

// ByIDForUpdate serializes concurrent operations on one chair, notably
// notification polls racing the matcher.
func (s *Store) ByIDForUpdate(ctx context.Context, id types.ID) (*Chair, error) {
	return scanChair(s.q.QueryRow(ctx,
		`SELECT `+chairColumns+` FROM chairs WHERE id = $1 FOR UPDATE`, id))
}

func (s *Store) ByAccessToken(ctx context.Context, token string) (*Chair, error) {
	return scanChair(s.q.QueryRow(ctx,
		`SELECT `+chairColumns+` FROM chairs WHERE access_token = $1`, token))
}

func (s *Store) listChairs(ctx context.Context, query string, args ...any) ([]*Chair, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Chair
	for rows.Next() {
		c, err := scanChair(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ByOwner(ctx context.Context, ownerID types.ID) ([]*Chair, error) {
	return s.listChairs(ctx,
		`SELECT `+chairColumns+` FROM chairs WHERE owner_id = $1 ORDER BY created_at`, ownerID)
}

func (s *Store) ListActive(ctx context.Context) ([]*Chair, error) {
	return s.listChairs(ctx,
		`SELECT `+chairColumns+` FROM chairs WHERE is_active`)
}

func (s *Store) SetActive(ctx context.Context, id types.ID, active bool) error {
	_, err := s.q.Exec(ctx,
		`UPDATE chairs SET is_active = $1, updated_at = now() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("set chair activity: %w", err)
	}
	return nil
}

func (s *Store) AppendLocation(ctx context.Context, chairID types.ID, c types.Coordinate) (*LocationSample, error) {
	sample := &LocationSample{
		ID:         types.ID(uuid.NewString()),
		ChairID:    chairID,
		Coordinate: c,
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO chair_locations (id, chair_id, latitude, longitude)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		sample.ID, chairID, c.Latitude, c.Longitude).Scan(&sample.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append chair location: %w", err)
	}
	return sample, nil
}

func (s *Store) LatestLocation(ctx context.Context, chairID types.ID) (*types.Coordinate, error) {
	var c types.Coordinate
	err := s.q.QueryRow(ctx,
		`SELECT latitude, longitude FROM chair_locations
		 WHERE chair_id = $1 ORDER BY created_at DESC LIMIT 1`,
		chairID).Scan(&c.Latitude, &c.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DistanceSummary is the total Manhattan distance a chair has covered and
// when its location was last sampled.
type DistanceSummary struct {
	Distance  int
	UpdatedAt time.Time
}

func (s *Store) DistanceSummaryByOwner(ctx context.Context, ownerID types.ID) (map[types.ID]DistanceSummary, error) {
	rows, err := s.q.Query(ctx, `
		SELECT t.chair_id,
		       COALESCE(SUM(ABS(t.latitude - t.prev_latitude) + ABS(t.longitude - t.prev_longitude)), 0),
		       MAX(t.created_at)
		FROM (
			SELECT cl.chair_id, cl.latitude, cl.longitude, cl.created_at,
			       LAG(cl.latitude) OVER w AS prev_latitude,
			       LAG(cl.longitude) OVER w AS prev_longitude
			FROM chair_locations cl
			JOIN chairs c ON c.id = cl.chair_id
			WHERE c.owner_id = $1
			WINDOW w AS (PARTITION BY cl.chair_id ORDER BY cl.created_at)
		) t
		GROUP BY t.chair_id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("distance summary: %w", err)
	}
	defer rows.Close()
	out := map[types.ID]DistanceSummary{}
	for rows.Next() {
		var id types.ID
		var d DistanceSummary
		if err := rows.Scan(&id, &d.Distance, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out[id] = d
	}
	return out, rows.Err()
}

func locationKey(chairID types.ID) string {
	return "chair:location:" + string(chairID)
}

// CacheLocation writes the latest coordinate through to Redis. Best effort:
// the database row is already committed when this runs.
func (s *Store) CacheLocation(ctx context.Context, chairID types.ID, c types.Coordinate) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, locationKey(chairID), payload, 24*time.Hour).Err()
}

// CachedLocation returns the cached latest coordinate, falling back to the
// database when the key is missing or Redis is down.
func (s *Store) CachedLocation(ctx context.Context, chairID types.ID) (*types.Coordinate, error) {
	payload, err := s.cache.Get(ctx, locationKey(chairID)).Bytes()
	if err == nil {
		var c types.Coordinate
		if err := json.Unmarshal(payload, &c); err == nil {
			return &c, nil
		}
	}
	return s.LatestLocation(ctx, chairID)
}
