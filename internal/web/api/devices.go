package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"switchfleet/internal/db"
	"switchfleet/internal/dispatch"
	"switchfleet/internal/metrics"
	"switchfleet/internal/models"
	"switchfleet/internal/reconcile"
	"switchfleet/internal/registry"
	"switchfleet/internal/web/middleware"
	webmodels "switchfleet/internal/web/models"
)

func RegisterDeviceRoutes(router *gin.Engine, mw *middleware.Manager, telemetryCache gin.HandlerFunc, store *db.DB, dispatcher *dispatch.Dispatcher, rec *reconcile.Reconciler) {
	devices := router.Group("/devices")
	devices.Use(mw.RequireAuth())
	{
		devices.POST("", func(c *gin.Context) {
			var req webmodels.RegisterDeviceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			claims := middleware.ClaimsFrom(c)
			if err := store.InsertDevice(c, req.ID, req.Name, req.Model, claims.ID); err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": "Device already registered"})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"id": req.ID})
		})

		devices.GET("", func(c *gin.Context) {
			claims := middleware.ClaimsFrom(c)
			list, err := store.ListDevicesByUser(c, claims.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch devices"})
				return
			}
			c.JSON(http.StatusOK, list)
		})

		devices.GET("/:id", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, dev)
		})

		devices.DELETE("/:id", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			if err := store.DeleteDevice(c, dev.ID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete device"})
				return
			}
			rec.CancelDevice(dev.ID)
			c.Status(http.StatusNoContent)
		})

		devices.POST("/:id/control", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			var req webmodels.ControlRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			cmd := dispatch.NewCommand(models.CommandTypeSwitch, strconv.FormatBool(req.State), "user")
			res, err := dispatcher.Dispatch(c, dev.ID, cmd)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dispatch command"})
				return
			}
			c.JSON(http.StatusOK, controlResponse(res))
		})

		devices.GET("/:id/telemetry", telemetryCache, func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
			samples, err := store.ListSamples(c, dev.ID, hours, limit)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch telemetry"})
				return
			}
			c.JSON(http.StatusOK, samples)
		})

		devices.GET("/:id/corrections", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
			recs, err := store.ListCorrections(c, dev.ID, limit)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch corrections"})
				return
			}
			c.JSON(http.StatusOK, recs)
		})

		devices.POST("/:id/verify", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			v, err := rec.VerifyNow(c, dev.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
				return
			}
			c.JSON(http.StatusOK, v)
		})

		devices.GET("/:id/next", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			occ, found, err := rec.NextOccurrence(c, dev.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute next occurrence"})
				return
			}
			if !found {
				c.JSON(http.StatusOK, gin.H{"scheduled": false})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"scheduled":   true,
				"schedule":    occ.Schedule,
				"fire_at":     occ.FireAt,
				"eta_minutes": occ.ETA(time.Now()),
			})
		})
	}
}

// RegisterDeviceFacingRoutes serves the HTTP fallback for firmware without a
// live socket: heartbeat push and pending-command drain. Devices authenticate
// by possession of their id, matching the socket transport.
func RegisterDeviceFacingRoutes(router *gin.Engine, store *db.DB, events *registry.Broadcaster, rec *reconcile.Reconciler) {
	device := router.Group("/device")
	{
		device.POST("/:id/heartbeat", func(c *gin.Context) {
			id := c.Param("id")
			var req webmodels.HeartbeatRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			if _, err := store.GetDevice(c, id); err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Unknown device"})
				return
			}
			if err := store.MarkOnline(c, id); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record heartbeat"})
				return
			}
			sample := &models.StateSample{
				DeviceID:       id,
				SwitchState:    req.SwitchState,
				CurrentReading: req.CurrentReading,
				Voltage:        req.Voltage,
			}
			if err := store.AppendSample(c, sample); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record heartbeat"})
				return
			}
			metrics.HeartbeatsTotal.Inc()
			events.Broadcast(models.UpdateEvent(id, map[string]interface{}{
				"switch_state":    sample.SwitchState,
				"current_reading": sample.CurrentReading,
				"voltage":         sample.Voltage,
			}))
			rec.OnHeartbeat(id)
			c.JSON(http.StatusOK, gin.H{"recorded": true})
		})

		device.GET("/:id/commands", func(c *gin.Context) {
			id := c.Param("id")
			if _, err := store.GetDevice(c, id); err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Unknown device"})
				return
			}
			cmds, err := store.DrainPending(c, id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to drain commands"})
				return
			}
			c.JSON(http.StatusOK, cmds)
		})
	}
}

// controlResponse reports how the command traveled: over the live socket or
// into the durable queue
func controlResponse(res dispatch.Result) gin.H {
	method := "queue"
	if res.Delivered {
		method = "websocket"
	}
	out := gin.H{"delivered": res.Delivered, "method": method}
	if res.CommandID != 0 {
		out["command_id"] = res.CommandID
	}
	return out
}

// ownedDevice loads the path device and enforces ownership; admins see all.
// Writes the error response itself when the device is missing or foreign.
func ownedDevice(c *gin.Context, store *db.DB) (*models.Device, bool) {
	claims := middleware.ClaimsFrom(c)
	dev, err := store.GetOwnedDevice(c, c.Param("id"), claims.ID, claims.IsAdmin())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch device"})
		}
		return nil, false
	}
	return dev, true
}
