// README: Unit service: coarse nearest-neighbor gathering and geo index upkeep.
package unit

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"rakshak/internal/config"
	"rakshak/internal/types"
)

var ErrInvalidPosition = errors.New("invalid position")

// Store is the persistence contract the service needs.
type Store interface {
	Get(ctx context.Context, id types.ID) (*Unit, error)
	GetMany(ctx context.Context, ids []types.ID) ([]*Unit, error)
	ListByType(ctx context.Context, t Type) ([]*Unit, error)
	UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error
}

// Index is the nearest-neighbor contract, backed by Redis GEO in production.
type Index interface {
	Add(ctx context.Context, t Type, id types.ID, pos types.Point) error
	Nearby(ctx context.Context, t Type, p types.Point, radiusKm float64, limit int) ([]types.ID, error)
}

type Service struct {
	store Store
	index Index
	cfg   config.DispatchConfig
	log   *logrus.Logger
}

func NewService(store Store, index Index, cfg config.DispatchConfig, log *logrus.Logger) *Service {
	return &Service{store: store, index: index, cfg: cfg, log: log}
}

// Nearby is the coarse pre-filter bounding the set of expensive driving
// distance lookups: straight-line index order, no travel-time awareness.
// Units without a usable coordinate are excluded here, not later.
func (s *Service) Nearby(ctx context.Context, origin types.Point, t Type, limit int) ([]*Unit, error) {
	if limit <= 0 {
		limit = s.cfg.GatherLimit
	}
	ids, err := s.index.Nearby(ctx, t, origin, s.cfg.GatherRadiusKm, limit)
	if err != nil {
		return nil, err
	}
	units, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := units[:0]
	for _, u := range units {
		if u.Position.Valid() {
			out = append(out, u)
		}
	}
	return out, nil
}

// SyncGeoIndex seeds the Redis GEO keys from the unit table. Run at startup;
// the index is rebuildable state, not the source of truth.
func (s *Service) SyncGeoIndex(ctx context.Context) error {
	for _, t := range []Type{TypeAmbulance, TypeHospital, TypePolice} {
		units, err := s.store.ListByType(ctx, t)
		if err != nil {
			return err
		}
		n := 0
		for _, u := range units {
			if !u.Position.Valid() {
				continue
			}
			if err := s.index.Add(ctx, t, u.ID, u.Position); err != nil {
				return err
			}
			n++
		}
		s.log.WithFields(logrus.Fields{"type": t, "count": n}).Info("geo index seeded")
	}
	return nil
}

// UpdatePosition records an ambulance's last-known coordinate in both the
// unit table and the geo index.
func (s *Service) UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error {
	if !pos.Valid() {
		return ErrInvalidPosition
	}
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePosition(ctx, id, pos); err != nil {
		return err
	}
	if err := s.index.Add(ctx, u.Type, id, pos); err != nil {
		// The index is best-effort; the next SyncGeoIndex repairs it.
		s.log.WithError(err).WithField("unit_id", id).Warn("geo index update failed")
	}
	return nil
}
