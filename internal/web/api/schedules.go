package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"switchfleet/internal/db"
	"switchfleet/internal/dispatch"
	"switchfleet/internal/models"
	"switchfleet/internal/reconcile"
	"switchfleet/internal/web/middleware"
	webmodels "switchfleet/internal/web/models"
)

// scheduleCommand mirrors a schedule slot onto the device's local table so it
// keeps firing without connectivity. Sync is best-effort: an offline device
// picks the set up on its next full sync.
type scheduleCommand struct {
	Kind           string `json:"type"`
	Type           string `json:"command_type"`
	ScheduleAction string `json:"schedule_action"`
	Slot           int    `json:"slot"`
	Enabled        bool   `json:"enabled,omitempty"`
	Action         string `json:"action,omitempty"`
	Hour           int    `json:"hour"`
	Minute         int    `json:"minute"`
	Days           []int  `json:"days,omitempty"`
	ScheduleID     int    `json:"schedule_id,omitempty"`
}

func addScheduleCommand(s *models.Schedule, slot int) scheduleCommand {
	return scheduleCommand{
		Kind:           "command",
		Type:           models.CommandTypeSchedule,
		ScheduleAction: "add",
		Slot:           slot,
		Enabled:        s.Enabled,
		Action:         s.Action,
		Hour:           s.Hour,
		Minute:         s.Minute,
		Days:           s.Days.Numbers(),
		ScheduleID:     s.ID,
	}
}

func RegisterScheduleRoutes(router *gin.Engine, mw *middleware.Manager, store *db.DB, sender dispatch.Sender, rec *reconcile.Reconciler) {
	schedules := router.Group("/devices/:id/schedules")
	schedules.Use(mw.RequireAuth())
	{
		schedules.GET("", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			list, err := store.ListSchedulesByDevice(c, dev.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch schedules"})
				return
			}
			c.JSON(http.StatusOK, list)
		})

		schedules.POST("", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			sched, ok := bindSchedule(c, dev.ID, 0)
			if !ok {
				return
			}
			if err := store.InsertSchedule(c, sched); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create schedule"})
				return
			}
			synced := sender.Send(dev.ID, addScheduleCommand(sched, -1))
			rec.OnScheduleChanged(dev.ID)
			c.JSON(http.StatusCreated, gin.H{"schedule": sched, "synced_to_device": synced})
		})

		schedules.PUT("/:scheduleId", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			scheduleID, err := strconv.Atoi(c.Param("scheduleId"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schedule id"})
				return
			}
			sched, ok := bindSchedule(c, dev.ID, scheduleID)
			if !ok {
				return
			}
			if err := store.UpdateSchedule(c, sched); err != nil {
				scheduleStoreError(c, err)
				return
			}
			synced := sender.Send(dev.ID, addScheduleCommand(sched, -1))
			rec.OnScheduleChanged(dev.ID)
			c.JSON(http.StatusOK, gin.H{"schedule": sched, "synced_to_device": synced})
		})

		schedules.DELETE("/:scheduleId", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			scheduleID, err := strconv.Atoi(c.Param("scheduleId"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schedule id"})
				return
			}
			if err := store.DeleteSchedule(c, scheduleID, dev.ID); err != nil {
				scheduleStoreError(c, err)
				return
			}
			synced := sender.Send(dev.ID, scheduleCommand{
				Kind:           "command",
				Type:           models.CommandTypeSchedule,
				ScheduleAction: "delete",
				Slot:           -1,
				ScheduleID:     scheduleID,
			})
			rec.OnScheduleChanged(dev.ID)
			c.JSON(http.StatusOK, gin.H{"deleted": true, "synced_to_device": synced})
		})

		schedules.POST("/sync", func(c *gin.Context) {
			dev, ok := ownedDevice(c, store)
			if !ok {
				return
			}
			list, err := store.ListSchedulesByDevice(c, dev.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch schedules"})
				return
			}

			cleared := sender.Send(dev.ID, scheduleCommand{
				Kind:           "command",
				Type:           models.CommandTypeSchedule,
				ScheduleAction: "clear_all",
			})
			if !cleared {
				c.JSON(http.StatusOK, gin.H{
					"message": "Device is offline; schedules will sync on reconnect",
					"total":   len(list),
				})
				return
			}

			synced := 0
			for slot := range list {
				if sender.Send(dev.ID, addScheduleCommand(&list[slot], slot)) {
					synced++
				}
			}
			c.JSON(http.StatusOK, gin.H{"synced": synced, "total": len(list)})
		})
	}
}

// bindSchedule parses and validates the request body into a schedule row
func bindSchedule(c *gin.Context, deviceID string, scheduleID int) (*models.Schedule, bool) {
	var req webmodels.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return nil, false
	}

	days, err := models.ParseWeekdays(req.Days)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	repeatType := req.RepeatType
	if repeatType == "" {
		repeatType = "weekly"
	}

	sched := &models.Schedule{
		ID:         scheduleID,
		DeviceID:   deviceID,
		Name:       req.Name,
		Hour:       req.Hour,
		Minute:     req.Minute,
		Action:     req.Action,
		Days:       days,
		Enabled:    enabled,
		RepeatType: repeatType,
	}
	if err := sched.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return sched, true
}

func scheduleStoreError(c *gin.Context, err error) {
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}
