package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"switchfleet/auth"
	"switchfleet/internal/dispatch"
	"switchfleet/internal/metrics"
	"switchfleet/internal/models"
	"switchfleet/internal/reconcile"
	"switchfleet/internal/registry"
)

// Frame is the envelope for every inbound WebSocket message
type Frame struct {
	Type string `json:"type"`

	// device_connect / heartbeat / schedule_executed
	DeviceID       string   `json:"deviceId,omitempty"`
	SwitchState    *bool    `json:"switch_state,omitempty"`
	CurrentReading *float64 `json:"current_reading,omitempty"`
	Voltage        *float64 `json:"voltage,omitempty"`

	// user_connect
	Token string `json:"token,omitempty"`

	// schedule_executed
	ScheduleID   int    `json:"schedule_id,omitempty"`
	Action       string `json:"action,omitempty"`
	CurrentState *bool  `json:"current_state,omitempty"`
}

// wsConn adapts a gorilla connection to registry.Conn. Writes are serialized;
// a failed write reports not-delivered instead of raising.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(v interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v) == nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// Store is the slice of persistence the hub needs
type Store interface {
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	MarkOnline(ctx context.Context, id string) error
	AppendSample(ctx context.Context, sample *models.StateSample) error
	DeliverPending(ctx context.Context, deviceID string, deliver func(models.QueuedCommand) bool) (int, error)
}

// Hub accepts device and user WebSocket connections and feeds their events
// into the core: registry for presence, stores for telemetry, reconciler for
// re-arming.
type Hub struct {
	reg      *registry.Registry
	events   *registry.Broadcaster
	store    Store
	auth     *auth.Module
	rec      *reconcile.Reconciler
	upgrader websocket.Upgrader
}

// NewHub creates a hub
func NewHub(reg *registry.Registry, events *registry.Broadcaster, store Store, authModule *auth.Module, rec *reconcile.Reconciler) *Hub {
	return &Hub{
		reg:    reg,
		events: events,
		store:  store,
		auth:   authModule,
		rec:    rec,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and serves the connection until it closes
func (h *Hub) Handle(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("TRANSPORT: upgrade failed: %v", err)
		return
	}
	conn := &wsConn{conn: ws}

	defer func() {
		h.reg.Unregister(conn)
		ws.Close()
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				log.Printf("TRANSPORT: connection closed: %v", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("TRANSPORT: bad frame: %v", err)
			continue
		}
		h.handleFrame(c.Request.Context(), conn, frame)
	}
}

func (h *Hub) handleFrame(ctx context.Context, conn *wsConn, frame Frame) {
	switch frame.Type {
	case "device_connect":
		if frame.DeviceID == "" {
			return
		}
		h.reg.RegisterDevice(frame.DeviceID, conn)
		h.rec.OnDeviceConnected(frame.DeviceID)
		h.drainPending(ctx, frame.DeviceID)

	case "user_connect":
		claims, err := h.auth.ValidateToken(frame.Token)
		if err != nil {
			conn.Send(gin.H{"type": "auth_error", "message": "Invalid token"})
			return
		}
		h.reg.RegisterUser(claims.ID, conn)

	case "heartbeat":
		h.ingestHeartbeat(ctx, frame)

	case "schedule_executed":
		h.ingestScheduleExecuted(ctx, frame)

	default:
		log.Printf("TRANSPORT: unknown frame type %q", frame.Type)
	}
}

// drainPending flushes commands queued while the device was offline. Only
// commands the socket actually accepted are marked sent; a failed write
// leaves the remainder pending for the next connect.
func (h *Hub) drainPending(ctx context.Context, deviceID string) {
	n, err := h.store.DeliverPending(ctx, deviceID, func(cmd models.QueuedCommand) bool {
		if !h.reg.Send(deviceID, dispatch.NewCommand(cmd.Type, cmd.Value, cmd.Reason)) {
			log.Printf("TRANSPORT: push of queued command %d to %s failed, kept pending", cmd.ID, deviceID)
			return false
		}
		return true
	})
	if err != nil {
		log.Printf("TRANSPORT: drain failed for %s: %v", deviceID, err)
		return
	}
	if n > 0 {
		log.Printf("TRANSPORT: delivered %d queued commands to %s", n, deviceID)
	}
}

// ingestHeartbeat persists the sample, then re-arms so the reconciler reads a
// state at least as fresh as this write.
func (h *Hub) ingestHeartbeat(ctx context.Context, frame Frame) {
	if frame.DeviceID == "" || frame.SwitchState == nil {
		return
	}
	if _, err := h.store.GetDevice(ctx, frame.DeviceID); err != nil {
		log.Printf("TRANSPORT: heartbeat from unregistered device %s", frame.DeviceID)
		return
	}

	if err := h.store.MarkOnline(ctx, frame.DeviceID); err != nil {
		log.Printf("TRANSPORT: mark online failed for %s: %v", frame.DeviceID, err)
	}

	sample := &models.StateSample{
		DeviceID:    frame.DeviceID,
		SwitchState: *frame.SwitchState,
	}
	if frame.CurrentReading != nil {
		sample.CurrentReading = *frame.CurrentReading
	}
	if frame.Voltage != nil {
		sample.Voltage = *frame.Voltage
	}
	if err := h.store.AppendSample(ctx, sample); err != nil {
		log.Printf("TRANSPORT: sample append failed for %s: %v", frame.DeviceID, err)
		return
	}
	metrics.HeartbeatsTotal.Inc()

	h.events.Broadcast(models.UpdateEvent(frame.DeviceID, map[string]interface{}{
		"switch_state":    sample.SwitchState,
		"current_reading": sample.CurrentReading,
		"voltage":         sample.Voltage,
	}))
	h.rec.OnHeartbeat(frame.DeviceID)
}

// ingestScheduleExecuted records a device-side schedule execution as a state
// sample so the next reconciliation check sees the post-execution state.
func (h *Hub) ingestScheduleExecuted(ctx context.Context, frame Frame) {
	if frame.DeviceID == "" || frame.CurrentState == nil {
		return
	}
	log.Printf("TRANSPORT: schedule %d executed on %s: %s", frame.ScheduleID, frame.DeviceID, frame.Action)

	if err := h.store.MarkOnline(ctx, frame.DeviceID); err != nil {
		log.Printf("TRANSPORT: mark online failed for %s: %v", frame.DeviceID, err)
	}
	sample := &models.StateSample{
		DeviceID:    frame.DeviceID,
		SwitchState: *frame.CurrentState,
		Voltage:     230,
	}
	if err := h.store.AppendSample(ctx, sample); err != nil {
		log.Printf("TRANSPORT: sample append failed for %s: %v", frame.DeviceID, err)
		return
	}

	h.events.Broadcast(models.UpdateEvent(frame.DeviceID, map[string]interface{}{
		"switch_state":          sample.SwitchState,
		"current_reading":       0,
		"voltage":               230,
		"triggered_by_schedule": true,
		"schedule_id":           frame.ScheduleID,
	}))
	h.rec.OnHeartbeat(frame.DeviceID)
}
