// README: Live-connection registry for mobile units. Owns the handle/status
// table the dispatch broadcaster reads; replaces the process-wide globals the
// socket layer would otherwise grow.
package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rakshak/internal/modules/unit"
	"rakshak/internal/types"
)

var ErrNotReachable = errors.New("unit not reachable")

// Conn is a live connection handle. The websocket layer implements it.
type Conn interface {
	// ID distinguishes handles so a stale disconnect cannot clobber a reconnect.
	ID() string
	// Send queues one event for delivery; it must not block on a slow peer.
	Send(event string, payload any) error
}

// Directory is the slice of the unit store the registry needs: existence
// checks at register time and best-effort status mirroring.
type Directory interface {
	Exists(ctx context.Context, id types.ID) (bool, error)
	UpdatePresence(ctx context.Context, id types.ID, status unit.Status, lastSeen time.Time) error
}

// entry holds one unit's live state. Its mutex serializes mutations for that
// unit only; operations on different units never contend past the map lock.
type entry struct {
	mu       sync.Mutex
	conn     Conn
	status   unit.Status
	lastSeen time.Time
}

type Registry struct {
	mu      sync.RWMutex
	units   map[types.ID]*entry
	byConn  map[string]types.ID
	dir     Directory
	log     *logrus.Logger
	nowFunc func() time.Time
}

func NewRegistry(dir Directory, log *logrus.Logger) *Registry {
	return &Registry{
		units:   make(map[types.ID]*entry),
		byConn:  make(map[string]types.ID),
		dir:     dir,
		log:     log,
		nowFunc: time.Now,
	}
}

// Register attaches a connection handle to a unit and marks it AVAILABLE.
// Unknown unit ids are a logged no-op returning false, matching the ack the
// socket layer sends back. A reconnect replaces the previous handle; the old
// one becomes stale and its later disconnect is ignored.
func (r *Registry) Register(ctx context.Context, unitID types.ID, conn Conn) bool {
	ok, err := r.dir.Exists(ctx, unitID)
	if err != nil {
		r.log.WithError(err).WithField("unit_id", unitID).Error("presence register lookup failed")
		return false
	}
	if !ok {
		r.log.WithField("unit_id", unitID).Warn("register for unknown unit ignored")
		return false
	}

	now := r.nowFunc()

	r.mu.Lock()
	e := r.units[unitID]
	if e == nil {
		e = &entry{}
		r.units[unitID] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	old := e.conn
	e.conn = conn
	e.status = unit.StatusAvailable
	e.lastSeen = now
	e.mu.Unlock()

	r.mu.Lock()
	if old != nil {
		delete(r.byConn, old.ID())
	}
	r.byConn[conn.ID()] = unitID
	r.mu.Unlock()

	r.mirror(ctx, unitID, unit.StatusAvailable, now)
	r.log.WithFields(logrus.Fields{"unit_id": unitID, "conn_id": conn.ID()}).Info("unit registered")
	return true
}

// SetStatus updates the status of the unit owning the handle. Stale handles
// (after a disconnect or reconnect) are a silent, logged no-op.
func (r *Registry) SetStatus(ctx context.Context, connID string, status unit.Status) {
	if !unit.ValidStatus(status) || status == unit.StatusOffline {
		// OFFLINE is reachable only through Disconnect so the handle and
		// status always change together.
		r.log.WithField("status", status).Warn("ignoring invalid status update")
		return
	}

	unitID, e := r.lookup(connID)
	if e == nil {
		r.log.WithField("conn_id", connID).Debug("status update for stale handle ignored")
		return
	}

	now := r.nowFunc()
	e.mu.Lock()
	if e.conn == nil || e.conn.ID() != connID {
		e.mu.Unlock()
		return
	}
	e.status = status
	e.lastSeen = now
	e.mu.Unlock()

	r.mirror(ctx, unitID, status, now)
	r.log.WithFields(logrus.Fields{"unit_id": unitID, "status": status}).Info("unit status updated")
}

// Disconnect clears the handle and marks the unit OFFLINE. Handles that are
// no longer current are ignored.
func (r *Registry) Disconnect(ctx context.Context, connID string) {
	unitID, e := r.lookup(connID)
	if e == nil {
		return
	}

	now := r.nowFunc()
	e.mu.Lock()
	if e.conn == nil || e.conn.ID() != connID {
		e.mu.Unlock()
		return
	}
	e.conn = nil
	e.status = unit.StatusOffline
	e.lastSeen = now
	e.mu.Unlock()

	r.mu.Lock()
	delete(r.byConn, connID)
	r.mu.Unlock()

	r.mirror(ctx, unitID, unit.StatusOffline, now)
	r.log.WithFields(logrus.Fields{"unit_id": unitID, "conn_id": connID}).Info("unit disconnected")
}

// IsReachable reports whether the unit holds a live handle and is not OFFLINE.
func (r *Registry) IsReachable(unitID types.ID) bool {
	r.mu.RLock()
	e := r.units[unitID]
	r.mu.RUnlock()
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn != nil && e.status != unit.StatusOffline
}

// Send delivers one event over the unit's live connection.
func (r *Registry) Send(unitID types.ID, event string, payload any) error {
	r.mu.RLock()
	e := r.units[unitID]
	r.mu.RUnlock()
	if e == nil {
		return ErrNotReachable
	}

	e.mu.Lock()
	conn := e.conn
	status := e.status
	e.mu.Unlock()

	if conn == nil || status == unit.StatusOffline {
		return ErrNotReachable
	}
	return conn.Send(event, payload)
}

// Status returns the registry's view of a unit, for diagnostics.
func (r *Registry) Status(unitID types.ID) (unit.Status, bool) {
	r.mu.RLock()
	e := r.units[unitID]
	r.mu.RUnlock()
	if e == nil {
		return unit.StatusOffline, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, true
}

func (r *Registry) lookup(connID string) (types.ID, *entry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	unitID, ok := r.byConn[connID]
	if !ok {
		return "", nil
	}
	return unitID, r.units[unitID]
}

// mirror pushes the registry state into the unit store. Failures are logged
// only: the registry, not the database, is authoritative for reachability.
func (r *Registry) mirror(ctx context.Context, unitID types.ID, status unit.Status, lastSeen time.Time) {
	if r.dir == nil {
		return
	}
	if err := r.dir.UpdatePresence(ctx, unitID, status, lastSeen); err != nil {
		r.log.WithError(err).WithField("unit_id", unitID).Warn("presence mirror failed")
	}
}
