// README: Presence registry tests: reachability, reconnects, stale handles,
// and concurrent mutation safety (run with -race).
package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"rakshak/internal/modules/unit"
	"rakshak/internal/types"
)

type fakeDirectory struct {
	mu       sync.Mutex
	known    map[types.ID]bool
	statuses map[types.ID]unit.Status
	failAll  bool
}

func (f *fakeDirectory) Exists(ctx context.Context, id types.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return false, errors.New("db down")
	}
	return f.known[id], nil
}

func (f *fakeDirectory) UpdatePresence(ctx context.Context, id types.ID, status unit.Status, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("db down")
	}
	f.statuses[id] = status
	return nil
}

type fakeConn struct {
	id   string
	mu   sync.Mutex
	sent []string
	err  error
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, event)
	return nil
}

func newTestRegistry(known ...types.ID) (*Registry, *fakeDirectory) {
	dir := &fakeDirectory{known: make(map[types.ID]bool), statuses: make(map[types.ID]unit.Status)}
	for _, id := range known {
		dir.known[id] = true
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewRegistry(dir, log), dir
}

func TestRegisterMakesUnitReachable(t *testing.T) {
	r, dir := newTestRegistry("u1")
	ctx := context.Background()

	if r.IsReachable("u1") {
		t.Fatal("unit reachable before register")
	}
	if !r.Register(ctx, "u1", &fakeConn{id: "c1"}) {
		t.Fatal("register failed for known unit")
	}
	if !r.IsReachable("u1") {
		t.Fatal("unit not reachable after register")
	}
	if got := dir.statuses["u1"]; got != unit.StatusAvailable {
		t.Fatalf("mirrored status = %s, want AVAILABLE", got)
	}

	r.Disconnect(ctx, "c1")
	if r.IsReachable("u1") {
		t.Fatal("unit still reachable after disconnect")
	}
	if got := dir.statuses["u1"]; got != unit.StatusOffline {
		t.Fatalf("mirrored status = %s, want OFFLINE", got)
	}
}

func TestRegisterUnknownUnitIsNoOp(t *testing.T) {
	r, _ := newTestRegistry("u1")
	if r.Register(context.Background(), "ghost", &fakeConn{id: "c1"}) {
		t.Fatal("register succeeded for unknown unit")
	}
	if r.IsReachable("ghost") {
		t.Fatal("unknown unit reachable")
	}
}

// Reconnect: only the newest handle counts; disconnecting the stale one
// afterwards must not flip the unit offline.
func TestReconnectInvalidatesStaleHandle(t *testing.T) {
	r, _ := newTestRegistry("u1")
	ctx := context.Background()

	r.Register(ctx, "u1", &fakeConn{id: "c1"})
	r.Register(ctx, "u1", &fakeConn{id: "c2"})
	if !r.IsReachable("u1") {
		t.Fatal("unit not reachable after reconnect")
	}

	r.Disconnect(ctx, "c1") // stale
	if !r.IsReachable("u1") {
		t.Fatal("stale disconnect took the unit offline")
	}

	r.SetStatus(ctx, "c1", unit.StatusBusy) // stale status update
	if status, _ := r.Status("u1"); status != unit.StatusAvailable {
		t.Fatalf("stale handle changed status to %s", status)
	}

	r.Disconnect(ctx, "c2")
	if r.IsReachable("u1") {
		t.Fatal("unit reachable after live handle disconnected")
	}
}

func TestSetStatusBusyAndBack(t *testing.T) {
	r, dir := newTestRegistry("u1")
	ctx := context.Background()

	r.Register(ctx, "u1", &fakeConn{id: "c1"})
	r.SetStatus(ctx, "c1", unit.StatusBusy)
	if status, ok := r.Status("u1"); !ok || status != unit.StatusBusy {
		t.Fatalf("status = %s, want BUSY", status)
	}
	// BUSY units still hold a live connection.
	if !r.IsReachable("u1") {
		t.Fatal("busy unit should remain reachable")
	}
	if dir.statuses["u1"] != unit.StatusBusy {
		t.Fatalf("mirror = %s, want BUSY", dir.statuses["u1"])
	}

	r.SetStatus(ctx, "c1", unit.StatusAvailable)
	if status, _ := r.Status("u1"); status != unit.StatusAvailable {
		t.Fatalf("status = %s, want AVAILABLE", status)
	}
}

// OFFLINE only via Disconnect, so the handle and status change together.
func TestSetStatusRejectsOffline(t *testing.T) {
	r, _ := newTestRegistry("u1")
	ctx := context.Background()

	r.Register(ctx, "u1", &fakeConn{id: "c1"})
	r.SetStatus(ctx, "c1", unit.StatusOffline)
	if status, _ := r.Status("u1"); status != unit.StatusAvailable {
		t.Fatalf("status = %s, want AVAILABLE", status)
	}
	if !r.IsReachable("u1") {
		t.Fatal("unit should still be reachable")
	}
}

func TestSendReachesLiveConnOnly(t *testing.T) {
	r, _ := newTestRegistry("u1", "u2")
	ctx := context.Background()

	conn := &fakeConn{id: "c1"}
	r.Register(ctx, "u1", conn)

	if err := r.Send("u1", "assignment", map[string]string{"id": "inc-1"}); err != nil {
		t.Fatalf("send to live unit: %v", err)
	}
	if len(conn.sent) != 1 || conn.sent[0] != "assignment" {
		t.Fatalf("conn.sent = %v", conn.sent)
	}

	if err := r.Send("u2", "assignment", nil); !errors.Is(err, ErrNotReachable) {
		t.Fatalf("send to offline unit: %v, want ErrNotReachable", err)
	}

	r.Disconnect(ctx, "c1")
	if err := r.Send("u1", "assignment", nil); !errors.Is(err, ErrNotReachable) {
		t.Fatalf("send after disconnect: %v, want ErrNotReachable", err)
	}
}

func TestMirrorFailureDoesNotBlockRegistry(t *testing.T) {
	r, dir := newTestRegistry("u1")
	ctx := context.Background()

	r.Register(ctx, "u1", &fakeConn{id: "c1"})
	dir.mu.Lock()
	dir.failAll = true
	dir.mu.Unlock()

	r.SetStatus(ctx, "c1", unit.StatusBusy)
	if status, _ := r.Status("u1"); status != unit.StatusBusy {
		t.Fatalf("registry state must win over mirror failure, got %s", status)
	}
}

// Concurrent register/status/disconnect across many units must be safe and
// must leave every unit with a consistent handle/status pair.
func TestConcurrentMutations(t *testing.T) {
	const units = 20
	ids := make([]types.ID, units)
	for i := range ids {
		ids[i] = types.ID(fmt.Sprintf("u%d", i))
	}
	r, _ := newTestRegistry(ids...)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			c1 := &fakeConn{id: fmt.Sprintf("c%d-1", i)}
			c2 := &fakeConn{id: fmt.Sprintf("c%d-2", i)}
			r.Register(ctx, id, c1)
			r.SetStatus(ctx, c1.ID(), unit.StatusBusy)
			r.Register(ctx, id, c2) // reconnect
			r.Disconnect(ctx, c1.ID())
			r.SetStatus(ctx, c2.ID(), unit.StatusBusy)
		}()
	}
	wg.Wait()

	for _, id := range ids {
		if !r.IsReachable(id) {
			t.Fatalf("unit %s not reachable after reconnect storm", id)
		}
		if status, _ := r.Status(id); status != unit.StatusBusy {
			t.Fatalf("unit %s status %s, want BUSY", id, status)
		}
	}
}
