// README: Unit store backed by PostgreSQL.
package unit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rakshak/internal/types"
)

var ErrNotFound = errors.New("unit not found")

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Unit, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, name, type, phone, address, lat, lng, status, last_seen
        FROM units
        WHERE id = $1`, string(id),
	)
	return scanUnit(row)
}

func (s *PgStore) Exists(ctx context.Context, id types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM units WHERE id = $1)`, string(id))
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// GetMany preserves the order of ids; missing ids are silently dropped.
func (s *PgStore) GetMany(ctx context.Context, ids []types.ID) ([]*Unit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
        SELECT id, name, type, phone, address, lat, lng, status, last_seen
        FROM units
        WHERE id = ANY($1)`, raw,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[types.ID]*Unit, len(ids))
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Unit, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *PgStore) ListByType(ctx context.Context, t Type) ([]*Unit, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, name, type, phone, address, lat, lng, status, last_seen
        FROM units
        WHERE type = $1`, string(t),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdatePresence mirrors the registry's view of a unit into the database so
// operators see status and last-seen across restarts.
func (s *PgStore) UpdatePresence(ctx context.Context, id types.ID, status Status, lastSeen time.Time) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE units SET status = $1, last_seen = $2 WHERE id = $3`,
		string(status), lastSeen, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePosition stores an ambulance's last-known coordinate.
func (s *PgStore) UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE units SET lat = $1, lng = $2 WHERE id = $3`,
		pos.Lat, pos.Lng, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUnit(row pgx.Row) (*Unit, error) {
	var u Unit
	var phone, address *string
	var lastSeen *time.Time
	err := row.Scan(&u.ID, &u.Name, &u.Type, &phone, &address, &u.Position.Lat, &u.Position.Lng, &u.Status, &lastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if phone != nil {
		u.Phone = *phone
	}
	if address != nil {
		u.Address = *address
	}
	if lastSeen != nil {
		u.LastSeen = *lastSeen
	}
	return &u, nil
}
