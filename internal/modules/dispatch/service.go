// README: Dispatch orchestrator: gathers, ranks, and notifies per unit type.
package dispatch

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rakshak/internal/config"
	"rakshak/internal/modules/unit"
	"rakshak/internal/types"
)

// Gatherer is the coarse spatial pre-filter; unit.Service implements it.
type Gatherer interface {
	Nearby(ctx context.Context, origin types.Point, t unit.Type, limit int) ([]*unit.Unit, error)
}

type Service struct {
	gatherer    Gatherer
	resolver    *Resolver
	broadcaster *Broadcaster
	fanout      *Fanout
	cfg         config.DispatchConfig
	log         *logrus.Logger
}

func NewService(gatherer Gatherer, resolver *Resolver, broadcaster *Broadcaster, fanout *Fanout, cfg config.DispatchConfig, log *logrus.Logger) *Service {
	return &Service{
		gatherer:    gatherer,
		resolver:    resolver,
		broadcaster: broadcaster,
		fanout:      fanout,
		cfg:         cfg,
		log:         log,
	}
}

// Dispatch resolves the nearest units of every type concurrently, then pushes
// assignments to reachable ambulances and alerts to fixed services. Each
// stage is best-effort: a failed type resolves to an empty list, a failed
// recipient to a recorded failure. The outcome is always returned.
func (s *Service) Dispatch(ctx context.Context, req Request) (*Outcome, error) {
	out := &Outcome{}

	var g errgroup.Group
	g.Go(func() error {
		out.Nearest.Ambulances = s.resolveType(ctx, req, unit.TypeAmbulance, s.cfg.TopAmbulances)
		return nil
	})
	g.Go(func() error {
		out.Nearest.Hospitals = s.resolveType(ctx, req, unit.TypeHospital, s.cfg.TopHospitals)
		return nil
	})
	g.Go(func() error {
		out.Nearest.Police = s.resolveType(ctx, req, unit.TypePolice, s.cfg.TopPolice)
		return nil
	})
	_ = g.Wait()

	out.Results.Ambulance = s.broadcaster.Broadcast(req, out.Nearest.Ambulances)
	out.Results.Hospital = s.fanout.Notify(ctx, "Hospital", out.Nearest.Hospitals, req)
	out.Results.Police = s.fanout.Notify(ctx, "Police", out.Nearest.Police, req)

	s.log.WithFields(logrus.Fields{
		"incident_id": req.IncidentID,
		"ambulances":  len(out.Nearest.Ambulances),
		"hospitals":   len(out.Nearest.Hospitals),
		"police":      len(out.Nearest.Police),
		"dispatched":  out.Results.Ambulance.Dispatched,
	}).Info("dispatch pipeline finished")
	return out, nil
}

// resolveType runs gather then rank for one unit type. Failures degrade to an
// empty candidate list for that type only.
func (s *Service) resolveType(ctx context.Context, req Request, t unit.Type, topN int) []Candidate {
	units, err := s.gatherer.Nearby(ctx, req.Origin, t, s.cfg.GatherLimit)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"incident_id": req.IncidentID,
			"type":        t,
		}).Error("candidate gathering failed")
		return nil
	}
	if len(units) == 0 {
		return nil
	}
	return s.resolver.Rank(ctx, req.Origin, units, topN)
}
