// README: Google Distance Matrix wrapper used by the dispatch resolver.
package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"rakshak/internal/types"
)

// Element is one origin->destination measurement, index-aligned with the
// destinations slice passed to DrivingDistances.
type Element struct {
	OK             bool
	DistanceMeters int
	Duration       time.Duration
}

// DistanceService handles interactions with the Google Maps Distance Matrix API.
type DistanceService struct {
	client *maps.Client
}

// NewDistanceService creates a new DistanceService with the given API key.
func NewDistanceService(apiKey string) (*DistanceService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &DistanceService{client: client}, nil
}

// DrivingDistances returns driving distance and duration from origin to each
// destination. The result slice is index-aligned with destinations; entries
// the upstream could not resolve have OK == false.
func (s *DistanceService) DrivingDistances(ctx context.Context, origin types.Point, destinations []types.Point) ([]Element, error) {
	if len(destinations) == 0 {
		return nil, nil
	}

	dests := make([]string, len(destinations))
	for i, d := range destinations {
		dests[i] = formatPoint(d)
	}

	r := &maps.DistanceMatrixRequest{
		Origins:      []string{formatPoint(origin)},
		Destinations: dests,
		Mode:         maps.TravelModeDriving,
	}

	resp, err := s.client.DistanceMatrix(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("distance matrix error: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) != len(destinations) {
		return nil, fmt.Errorf("distance matrix returned malformed response: %d rows", len(resp.Rows))
	}

	out := make([]Element, len(destinations))
	for i, el := range resp.Rows[0].Elements {
		if el.Status != "OK" {
			out[i] = Element{OK: false}
			continue
		}
		out[i] = Element{
			OK:             true,
			DistanceMeters: el.Distance.Meters,
			Duration:       el.Duration,
		}
	}
	return out, nil
}

func formatPoint(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
