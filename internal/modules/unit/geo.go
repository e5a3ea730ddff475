// README: Geo index backed by Redis GEO sets, one key per unit type.
package unit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rakshak/internal/types"
)

const geoKeyPrefix = "units:geo:%s"

type GeoIndex struct {
	redis *redis.Client
}

func NewGeoIndex(client *redis.Client) *GeoIndex {
	return &GeoIndex{redis: client}
}

func (g *GeoIndex) Add(ctx context.Context, t Type, id types.ID, pos types.Point) error {
	return g.redis.GeoAdd(ctx, geoKey(t), &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

func (g *GeoIndex) Remove(ctx context.Context, t Type, id types.ID) error {
	return g.redis.ZRem(ctx, geoKey(t), string(id)).Err()
}

// Nearby returns unit ids of the given type within radiusKm of p, closest
// first, capped at limit.
func (g *GeoIndex) Nearby(ctx context.Context, t Type, p types.Point, radiusKm float64, limit int) ([]types.ID, error) {
	results, err := g.redis.GeoSearch(ctx, geoKey(t), &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

func geoKey(t Type) string {
	return fmt.Sprintf(geoKeyPrefix, string(t))
}
