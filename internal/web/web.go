package web

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"switchfleet/auth"
	"switchfleet/internal/db"
	"switchfleet/internal/dispatch"
	"switchfleet/internal/metrics"
	"switchfleet/internal/reconcile"
	"switchfleet/internal/registry"
	"switchfleet/internal/transport"
	"switchfleet/internal/web/api"
	"switchfleet/internal/web/middleware"
)

type WebServer struct {
	router *gin.Engine
}

func NewWebServer(
	store *db.DB,
	authModule *auth.Module,
	reg *registry.Registry,
	events *registry.Broadcaster,
	sender dispatch.Sender,
	dispatcher *dispatch.Dispatcher,
	rec *reconcile.Reconciler,
	hub *transport.Hub,
	webpushOptions *webpush.Options,
) *WebServer {
	router := gin.Default()

	mw := middleware.NewManager(authModule)
	router.Use(middleware.RateLimiter(rate.Limit(20), 40))

	// Telemetry history is append-only within a short window, so a brief
	// response cache absorbs dashboard polling.
	telemetryStore := cache.New(30*time.Second, 5*time.Minute)
	telemetryCache := middleware.Cache(telemetryStore, 30*time.Second)

	api.RegisterAuthRoutes(router, authModule)
	api.RegisterDeviceRoutes(router, mw, telemetryCache, store, dispatcher, rec)
	api.RegisterDeviceFacingRoutes(router, store, events, rec)
	api.RegisterScheduleRoutes(router, mw, store, sender, rec)
	api.RegisterAdminRoutes(router, mw, store, reg, dispatcher)
	api.RegisterSubscriptionRoutes(router, mw, store, webpushOptions)

	router.GET("/ws", hub.Handle)
	router.GET("/metrics", metrics.Handler())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return &WebServer{router: router}
}

func (ws *WebServer) Start(addr string) error {
	return ws.router.Run(addr)
}

// Router exposes the engine for tests
func (ws *WebServer) Router() *gin.Engine {
	return ws.router
}
