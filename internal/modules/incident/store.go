// README: Incident store backed by PostgreSQL.
package incident

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rakshak/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, in *Incident) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO incidents (
            id, phone_number, description, lat, lng,
            severity, status, image_urls, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(in.ID),
		in.PhoneNumber,
		in.Description,
		in.Origin.Lat, in.Origin.Lng,
		nullIfEmpty(string(in.Severity)),
		string(in.Status),
		in.ImageURLs,
		in.CreatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Incident, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, phone_number, description, lat, lng,
               severity, status, image_urls, created_at, reviewed_at
        FROM incidents
        WHERE id = $1`, string(id),
	)
	return scanIncident(row)
}

func (s *PgStore) List(ctx context.Context, page, pageSize int) ([]*Incident, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, phone_number, description, lat, lng,
               severity, status, image_urls, created_at, reviewed_at
        FROM incidents
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Incident
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// UpdateStatus moves the incident out of REPORTED with a compare-and-set so a
// replayed transition cannot re-trigger dispatch. Returns false when the row
// was not in REPORTED anymore (or the status value is unchanged-by-race).
func (s *PgStore) UpdateStatus(ctx context.Context, id types.ID, to Status, reviewedAt time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE incidents
        SET status = $1, reviewed_at = $2
        WHERE id = $3 AND status = $4`,
		string(to),
		reviewedAt,
		string(id),
		string(StatusReported),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanIncident(row pgx.Row) (*Incident, error) {
	var in Incident
	var severity *string
	var reviewedAt *time.Time
	err := row.Scan(
		&in.ID, &in.PhoneNumber, &in.Description, &in.Origin.Lat, &in.Origin.Lng,
		&severity, &in.Status, &in.ImageURLs, &in.CreatedAt, &reviewedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if severity != nil {
		in.Severity = Severity(*severity)
	}
	in.ReviewedAt = reviewedAt
	return &in, nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
