// README: Gatherer tests with in-memory store and index fakes.
package unit

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"rakshak/internal/config"
	"rakshak/internal/types"
)

type memUnitStore struct {
	units map[types.ID]*Unit
}

func (m *memUnitStore) Get(ctx context.Context, id types.ID) (*Unit, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *memUnitStore) GetMany(ctx context.Context, ids []types.ID) ([]*Unit, error) {
	out := make([]*Unit, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.units[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUnitStore) ListByType(ctx context.Context, t Type) ([]*Unit, error) {
	var out []*Unit
	for _, u := range m.units {
		if u.Type == t {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUnitStore) UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error {
	u, ok := m.units[id]
	if !ok {
		return ErrNotFound
	}
	u.Position = pos
	return nil
}

type memIndex struct {
	// nearby is returned in insertion order, mimicking the ASC geo search.
	nearby map[Type][]types.ID
	added  map[Type][]types.ID
	err    error
}

func (m *memIndex) Add(ctx context.Context, t Type, id types.ID, pos types.Point) error {
	if m.added == nil {
		m.added = make(map[Type][]types.ID)
	}
	m.added[t] = append(m.added[t], id)
	return m.err
}

func (m *memIndex) Nearby(ctx context.Context, t Type, p types.Point, radiusKm float64, limit int) ([]types.ID, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := m.nearby[t]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func newUnitService(store Store, index Index) *Service {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewService(store, index, config.DispatchConfig{GatherLimit: 20, GatherRadiusKm: 50}, log)
}

func TestNearby_PreservesIndexOrderAndDropsInvalidCoordinates(t *testing.T) {
	store := &memUnitStore{units: map[types.ID]*Unit{
		"a": {ID: "a", Type: TypeAmbulance, Position: types.Point{Lat: 27.70, Lng: 85.32}},
		"b": {ID: "b", Type: TypeAmbulance}, // never positioned
		"c": {ID: "c", Type: TypeAmbulance, Position: types.Point{Lat: 27.72, Lng: 85.33}},
	}}
	index := &memIndex{nearby: map[Type][]types.ID{
		TypeAmbulance: {"a", "b", "c", "ghost"},
	}}
	svc := newUnitService(store, index)

	got, err := svc.Nearby(context.Background(), types.Point{Lat: 27.71, Lng: 85.32}, TypeAmbulance, 10)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 units, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("order broken: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestNearby_AppliesLimit(t *testing.T) {
	store := &memUnitStore{units: map[types.ID]*Unit{}}
	index := &memIndex{nearby: map[Type][]types.ID{}}
	for i := 0; i < 30; i++ {
		id := types.ID(rune('a' + i))
		store.units[id] = &Unit{ID: id, Type: TypeHospital, Position: types.Point{Lat: 27.7, Lng: 85.3}}
		index.nearby[TypeHospital] = append(index.nearby[TypeHospital], id)
	}
	svc := newUnitService(store, index)

	got, err := svc.Nearby(context.Background(), types.Point{Lat: 27.7, Lng: 85.3}, TypeHospital, 5)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("limit not applied: got %d", len(got))
	}
}

func TestSyncGeoIndex_SkipsUnpositionedUnits(t *testing.T) {
	store := &memUnitStore{units: map[types.ID]*Unit{
		"a": {ID: "a", Type: TypeAmbulance, Position: types.Point{Lat: 27.70, Lng: 85.32}},
		"b": {ID: "b", Type: TypeAmbulance},
		"h": {ID: "h", Type: TypeHospital, Position: types.Point{Lat: 27.71, Lng: 85.33}},
	}}
	index := &memIndex{}
	svc := newUnitService(store, index)

	if err := svc.SyncGeoIndex(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(index.added[TypeAmbulance]) != 1 || index.added[TypeAmbulance][0] != "a" {
		t.Fatalf("ambulance seeding wrong: %v", index.added[TypeAmbulance])
	}
	if len(index.added[TypeHospital]) != 1 {
		t.Fatalf("hospital seeding wrong: %v", index.added[TypeHospital])
	}
}

func TestUpdatePosition(t *testing.T) {
	store := &memUnitStore{units: map[types.ID]*Unit{
		"a": {ID: "a", Type: TypeAmbulance, Position: types.Point{Lat: 27.70, Lng: 85.32}},
	}}
	index := &memIndex{}
	svc := newUnitService(store, index)
	ctx := context.Background()

	if err := svc.UpdatePosition(ctx, "a", types.Point{Lat: 27.75, Lng: 85.35}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.units["a"].Position.Lat != 27.75 {
		t.Fatal("store position not updated")
	}
	if len(index.added[TypeAmbulance]) != 1 {
		t.Fatal("geo index not updated")
	}

	if err := svc.UpdatePosition(ctx, "a", types.Point{}); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
	if err := svc.UpdatePosition(ctx, "ghost", types.Point{Lat: 1, Lng: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
