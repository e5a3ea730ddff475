// README: Broadcaster unit tests with a fake presence registry.
package dispatch

import (
	"errors"
	"testing"

	"rakshak/internal/modules/unit"
	"rakshak/internal/types"
)

type sentEvent struct {
	unitID  types.ID
	event   string
	payload any
}

type fakePresence struct {
	reachable map[types.ID]bool
	sendErr   map[types.ID]error
	sent      []sentEvent
}

func (f *fakePresence) IsReachable(id types.ID) bool { return f.reachable[id] }

func (f *fakePresence) Send(id types.ID, event string, payload any) error {
	if err := f.sendErr[id]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentEvent{unitID: id, event: event, payload: payload})
	return nil
}

func rankedAmbulances(ids ...string) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{
			Unit:       ambulanceAt(id, 27.7+float64(i)*0.01, 85.3),
			DistanceKm: float64(i + 1),
			EtaMin:     (i + 1) * 2,
		}
	}
	return out
}

func TestBroadcast_DeliversOneAssignmentPerReachableUnit(t *testing.T) {
	presence := &fakePresence{reachable: map[types.ID]bool{"a1": true}}
	b := NewBroadcaster(presence, testLogger())

	req := Request{
		IncidentID:  "inc-1",
		Origin:      types.Point{Lat: 27.7172, Lng: 85.3240},
		Description: "collision",
		Severity:    "HIGH",
	}
	res := b.Broadcast(req, rankedAmbulances("a1", "a2"))

	if res.Dispatched != 1 {
		t.Fatalf("Dispatched = %d, want 1", res.Dispatched)
	}
	if len(res.NotifiedUnitIDs) != 1 || res.NotifiedUnitIDs[0] != "a1" {
		t.Fatalf("NotifiedUnitIDs = %v", res.NotifiedUnitIDs)
	}
	if res.Reason != "" {
		t.Fatalf("unexpected reason %q", res.Reason)
	}
	if len(presence.sent) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(presence.sent))
	}
	ev := presence.sent[0]
	if ev.event != EventAssignment {
		t.Fatalf("event = %q, want %q", ev.event, EventAssignment)
	}
	payload, ok := ev.payload.(Assignment)
	if !ok {
		t.Fatalf("payload is %T", ev.payload)
	}
	if payload.IncidentID != "inc-1" || !payload.Verified {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Lat != 27.7172 || payload.Lng != 85.3240 {
		t.Fatalf("payload coordinates %v,%v", payload.Lat, payload.Lng)
	}
}

func TestBroadcast_NoReachableUnits(t *testing.T) {
	presence := &fakePresence{reachable: map[types.ID]bool{}}
	b := NewBroadcaster(presence, testLogger())

	res := b.Broadcast(Request{IncidentID: "inc-1"}, rankedAmbulances("a1", "a2", "a3"))
	if res.Dispatched != 0 {
		t.Fatalf("Dispatched = %d, want 0", res.Dispatched)
	}
	if res.Reason == "" {
		t.Fatal("expected a non-empty reason")
	}
	if len(presence.sent) != 0 {
		t.Fatalf("no events should have been sent, got %d", len(presence.sent))
	}
}

func TestBroadcast_SendFailureDoesNotCountAsDispatched(t *testing.T) {
	presence := &fakePresence{
		reachable: map[types.ID]bool{"a1": true, "a2": true},
		sendErr:   map[types.ID]error{"a1": errors.New("connection gone")},
	}
	b := NewBroadcaster(presence, testLogger())

	res := b.Broadcast(Request{IncidentID: "inc-1"}, rankedAmbulances("a1", "a2"))
	if res.Dispatched != 1 {
		t.Fatalf("Dispatched = %d, want 1", res.Dispatched)
	}
	if res.NotifiedUnitIDs[0] != "a2" {
		t.Fatalf("NotifiedUnitIDs = %v", res.NotifiedUnitIDs)
	}
}

func TestBroadcast_SkipsFixedServices(t *testing.T) {
	presence := &fakePresence{reachable: map[types.ID]bool{"h1": true}}
	b := NewBroadcaster(presence, testLogger())

	hospital := Candidate{Unit: &unit.Unit{
		ID:       "h1",
		Type:     unit.TypeHospital,
		Position: types.Point{Lat: 27.7, Lng: 85.3},
	}}
	res := b.Broadcast(Request{IncidentID: "inc-1"}, []Candidate{hospital})
	if res.Dispatched != 0 || len(presence.sent) != 0 {
		t.Fatalf("fixed service must not receive assignments: %+v", res)
	}
}
