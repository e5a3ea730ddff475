// README: Driving-distance resolver: batched Distance Matrix ranking under
// the upstream per-call destination limit.
package dispatch

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rakshak/internal/config"
	"rakshak/internal/maps"
	"rakshak/internal/modules/unit"
	"rakshak/internal/types"
)

// DistanceClient is the upstream contract; *maps.DistanceService implements it.
type DistanceClient interface {
	DrivingDistances(ctx context.Context, origin types.Point, destinations []types.Point) ([]maps.Element, error)
}

type Resolver struct {
	client DistanceClient
	cfg    config.DispatchConfig
	log    *logrus.Logger
}

func NewResolver(client DistanceClient, cfg config.DispatchConfig, log *logrus.Logger) *Resolver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}
	return &Resolver{client: client, cfg: cfg, log: log}
}

// Rank scores candidates by real driving distance and returns the closest
// topN, ascending. Candidates without a usable coordinate are dropped first.
// A failed or malformed batch loses only its own candidates; survivors from
// other batches are still ranked correctly among themselves.
func (r *Resolver) Rank(ctx context.Context, origin types.Point, units []*unit.Unit, topN int) []Candidate {
	valid := make([]*unit.Unit, 0, len(units))
	for _, u := range units {
		if u.Position.Valid() {
			valid = append(valid, u)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	batches := partition(valid, r.cfg.BatchSize)
	resolved := make([][]Candidate, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.BatchConcurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			resolved[i] = r.resolveBatch(gctx, origin, batch)
			return nil
		})
	}
	_ = g.Wait() // batch errors are absorbed, never propagated

	var merged []Candidate
	for _, part := range resolved {
		merged = append(merged, part...)
	}

	// Stable: equal distances keep original candidate-set order.
	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].DistanceMeters < merged[b].DistanceMeters
	})

	if topN > 0 && len(merged) > topN {
		merged = merged[:topN]
	}
	return merged
}

// resolveBatch issues one upstream call for a batch and pairs results back to
// their originating candidates by index. Returns nil when the batch fails.
func (r *Resolver) resolveBatch(ctx context.Context, origin types.Point, batch []*unit.Unit) []Candidate {
	bctx := ctx
	if r.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, r.cfg.BatchTimeout)
		defer cancel()
	}

	dests := make([]types.Point, len(batch))
	for i, u := range batch {
		dests[i] = u.Position
	}

	elements, err := r.client.DrivingDistances(bctx, origin, dests)
	if err != nil {
		r.log.WithError(err).WithField("batch_size", len(batch)).Warn("distance batch failed, skipping its candidates")
		return nil
	}
	if len(elements) != len(batch) {
		r.log.WithFields(logrus.Fields{
			"batch_size": len(batch),
			"elements":   len(elements),
		}).Warn("distance batch misaligned, skipping its candidates")
		return nil
	}

	out := make([]Candidate, 0, len(batch))
	for i, el := range elements {
		if !el.OK {
			continue
		}
		out = append(out, Candidate{
			Unit:           batch[i],
			DistanceMeters: el.DistanceMeters,
			DurationSec:    int(el.Duration.Seconds()),
			DistanceKm:     roundKm(el.DistanceMeters),
			EtaMin:         int(math.Round(el.Duration.Minutes())),
		})
	}
	return out
}

func partition(units []*unit.Unit, size int) [][]*unit.Unit {
	var out [][]*unit.Unit
	for len(units) > size {
		out = append(out, units[:size])
		units = units[size:]
	}
	if len(units) > 0 {
		out = append(out, units)
	}
	return out
}

func roundKm(meters int) float64 {
	return math.Round(float64(meters)/10) / 100
}
