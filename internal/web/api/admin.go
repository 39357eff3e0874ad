package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"switchfleet/internal/db"
	"switchfleet/internal/dispatch"
	"switchfleet/internal/models"
	"switchfleet/internal/registry"
	"switchfleet/internal/web/middleware"
	webmodels "switchfleet/internal/web/models"
)

func RegisterAdminRoutes(router *gin.Engine, mw *middleware.Manager, store *db.DB, reg *registry.Registry, dispatcher *dispatch.Dispatcher) {
	admin := router.Group("/admin")
	admin.Use(mw.RequireAuth(), mw.RequireAdmin())
	{
		admin.GET("/devices", func(c *gin.Context) {
			list, err := store.ListAllDevices(c)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch devices"})
				return
			}
			c.JSON(http.StatusOK, list)
		})

		admin.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"connected_devices": reg.OnlineCount()})
		})

		admin.POST("/devices/:id/control", func(c *gin.Context) {
			var req webmodels.ControlRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			cmd := dispatch.NewCommand(models.CommandTypeSwitch, strconv.FormatBool(req.State), "admin")
			res, err := dispatcher.Dispatch(c, c.Param("id"), cmd)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dispatch command"})
				return
			}
			c.JSON(http.StatusOK, controlResponse(res))
		})
	}
}
