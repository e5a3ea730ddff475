// README: WebSocket hub: upgrades unit connections and routes their events
// into the presence registry.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"rakshak/internal/modules/presence"
	"rakshak/internal/modules/unit"
	"rakshak/internal/types"
)

// Inbound event names (unit -> coordinator).
const (
	eventRegister         = "register"
	eventStatus           = "status"
	eventPosition         = "position"
	eventAssignmentAccept = "assignment:accept"
	eventAssignmentReject = "assignment:reject"
)

// Outbound event names (coordinator -> unit).
const eventRegistered = "registered"

var timeNow = time.Now

// Positions is the slice of the unit service the hub needs for last-known
// ambulance coordinates.
type Positions interface {
	UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error
}

type Hub struct {
	registry  *presence.Registry
	positions Positions
	upgrader  websocket.Upgrader
	log       *logrus.Logger
}

func NewHub(registry *presence.Registry, positions Positions, log *logrus.Logger) *Hub {
	return &Hub{
		registry:  registry,
		positions: positions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Units connect from mobile apps, not browsers; origin checks
			// belong to the auth layer outside this core.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Handle upgrades the request and serves the connection until it drops.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(uuid.NewString(), conn)
	h.log.WithField("conn_id", client.ID()).Info("unit connection opened")

	go client.writePump()
	h.readPump(client)
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		client.close()
		h.registry.Disconnect(context.Background(), client.ID())
		h.log.WithField("conn_id", client.ID()).Info("unit connection closed")
	}()

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(timeNow().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(timeNow().Add(pongWait))
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("conn_id", client.ID()).Debug("unexpected websocket close")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.log.WithField("conn_id", client.ID()).Warn("dropping malformed frame")
			continue
		}
		h.route(client, env)
	}
}

func (h *Hub) route(client *Client, env Envelope) {
	ctx := context.Background()

	switch env.Event {
	case eventRegister:
		var data struct {
			UnitID string `json:"unitId"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil || data.UnitID == "" {
			_ = client.Send(eventRegistered, gin.H{"success": false, "error": "missing unitId"})
			return
		}
		ok := h.registry.Register(ctx, types.ID(data.UnitID), client)
		_ = client.Send(eventRegistered, gin.H{"success": ok, "unitId": data.UnitID})

	case eventStatus:
		var data struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return
		}
		h.registry.SetStatus(ctx, client.ID(), unit.Status(data.Status))

	case eventPosition:
		var data struct {
			UnitID string  `json:"unitId"`
			Lat    float64 `json:"lat"`
			Lng    float64 `json:"lng"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil || data.UnitID == "" {
			return
		}
		if err := h.positions.UpdatePosition(ctx, types.ID(data.UnitID), types.Point{Lat: data.Lat, Lng: data.Lng}); err != nil {
			h.log.WithError(err).WithField("unit_id", data.UnitID).Warn("position update failed")
		}

	case eventAssignmentAccept:
		// Acceptance takes the unit out of the dispatch pool.
		h.registry.SetStatus(ctx, client.ID(), unit.StatusBusy)

	case eventAssignmentReject:
		h.registry.SetStatus(ctx, client.ID(), unit.StatusAvailable)

	default:
		h.log.WithFields(logrus.Fields{
			"conn_id": client.ID(),
			"event":   env.Event,
		}).Debug("ignoring unknown event")
	}
}
