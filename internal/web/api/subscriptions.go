package api

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"switchfleet/internal/db"
	"switchfleet/internal/models"
	"switchfleet/internal/web/middleware"
	webmodels "switchfleet/internal/web/models"
)

func RegisterSubscriptionRoutes(router *gin.Engine, mw *middleware.Manager, store *db.DB, webpushOptions *webpush.Options) {
	subs := router.Group("/subscriptions")
	subs.Use(mw.RequireAuth())
	{
		subs.PUT("", func(c *gin.Context) {
			var req webmodels.SubscriptionRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			sub := &models.PushSubscription{
				UserID:   middleware.ClaimsFrom(c).ID,
				Endpoint: req.Endpoint,
				P256DH:   req.Keys.P256DH,
				Auth:     req.Keys.Auth,
			}
			if err := store.UpsertSubscription(c, sub); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
				return
			}
			c.JSON(http.StatusOK, sub)
		})

		subs.DELETE("", func(c *gin.Context) {
			endpoint := c.Query("endpoint")
			if endpoint == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint query parameter required"})
				return
			}
			if err := store.DeleteSubscription(c, endpoint); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscription"})
				return
			}
			c.Status(http.StatusNoContent)
		})
	}

	router.GET("/vapid_public_key", func(c *gin.Context) {
		if webpushOptions == nil || webpushOptions.VAPIDPublicKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications are not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"public_key": webpushOptions.VAPIDPublicKey})
	})
}
