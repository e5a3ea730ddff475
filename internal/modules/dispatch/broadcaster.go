// README: Broadcaster pushes assignment events to reachable mobile units.
package dispatch

import (
	"github.com/sirupsen/logrus"

	"rakshak/internal/types"
)

// EventAssignment is the outbound event name mobile units listen for.
const EventAssignment = "assignment"

// Assignment is the payload delivered over a unit's live connection.
type Assignment struct {
	IncidentID  types.ID `json:"incidentId"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	DistanceKm  float64  `json:"distanceKm"`
	EtaMin      int      `json:"etaMin"`
	Verified    bool     `json:"verified"`
}

// Presence is the registry read/send surface the broadcaster needs.
type Presence interface {
	IsReachable(id types.ID) bool
	Send(id types.ID, event string, payload any) error
}

type Broadcaster struct {
	presence Presence
	log      *logrus.Logger
}

func NewBroadcaster(presence Presence, log *logrus.Logger) *Broadcaster {
	return &Broadcaster{presence: presence, log: log}
}

// Broadcast delivers one assignment event to each ranked candidate that is
// currently reachable. Fire-and-forget: the unit's accept/reject arrives
// later over its own connection and is handled by the socket layer.
func (b *Broadcaster) Broadcast(req Request, ranked []Candidate) BroadcastResult {
	var res BroadcastResult
	for _, c := range ranked {
		if !c.Unit.Type.ConnectionBearing() {
			continue
		}
		if !b.presence.IsReachable(c.Unit.ID) {
			continue
		}

		payload := Assignment{
			IncidentID:  req.IncidentID,
			Lat:         req.Origin.Lat,
			Lng:         req.Origin.Lng,
			Description: req.Description,
			Severity:    req.Severity,
			DistanceKm:  c.DistanceKm,
			EtaMin:      c.EtaMin,
			Verified:    true,
		}
		if err := b.presence.Send(c.Unit.ID, EventAssignment, payload); err != nil {
			// Unit dropped between the reachability check and the send.
			b.log.WithError(err).WithFields(logrus.Fields{
				"incident_id": req.IncidentID,
				"unit_id":     c.Unit.ID,
			}).Warn("assignment delivery failed")
			continue
		}

		res.Dispatched++
		res.NotifiedUnitIDs = append(res.NotifiedUnitIDs, c.Unit.ID)
		b.log.WithFields(logrus.Fields{
			"incident_id": req.IncidentID,
			"unit_id":     c.Unit.ID,
			"distance_km": c.DistanceKm,
		}).Info("assignment dispatched")
	}

	if res.Dispatched == 0 {
		res.Reason = "no reachable units"
	}
	return res
}
