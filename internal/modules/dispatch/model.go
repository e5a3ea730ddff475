// README: Dispatch pipeline value types: requests, ranked candidates, outcomes.
package dispatch

import (
	"rakshak/internal/modules/unit"
	"rakshak/internal/types"
)

// Request carries the incident fields the pipeline needs. The incident module
// builds it so the pipeline never depends on the incident aggregate.
type Request struct {
	IncidentID  types.ID
	Origin      types.Point
	Description string
	Severity    string
}

// Candidate is a unit scored with driving distance for one resolution.
// Ephemeral: constructed per call, never persisted.
type Candidate struct {
	Unit           *unit.Unit
	DistanceMeters int
	DurationSec    int
	// Presentation values: kilometres to two decimals, minutes rounded.
	DistanceKm float64
	EtaMin     int
}

// NearestServices is the per-type truncated candidate ranking.
type NearestServices struct {
	Ambulances []Candidate
	Hospitals  []Candidate
	Police     []Candidate
}

// BroadcastResult reports live-connection delivery for mobile units.
type BroadcastResult struct {
	Dispatched      int
	NotifiedUnitIDs []types.ID
	Reason          string // set when Dispatched == 0
}

// FanoutResult reports alert delivery to fixed services.
type FanoutResult struct {
	Notified int
	Failures []string
}

type Results struct {
	Ambulance BroadcastResult
	Hospital  FanoutResult
	Police    FanoutResult
}

// Outcome is returned to the coordinator. Any section may be partial.
type Outcome struct {
	Nearest NearestServices
	Results Results
}
