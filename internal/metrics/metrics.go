package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"switchfleet/internal/models"
)

var (
	CorrectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchfleet_corrections_total",
		Help: "Schedule corrections dispatched",
	})
	CommandsQueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchfleet_commands_queued_total",
		Help: "Commands queued for offline devices",
	})
	HeartbeatsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchfleet_heartbeats_total",
		Help: "Telemetry samples ingested",
	})
	BroadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "switchfleet_broadcasts_total",
		Help: "Events broadcast to users",
	}, []string{"type"})
)

// OnlineCounter reports the number of devices with a live connection
type OnlineCounter interface {
	OnlineCount() int
}

// Register installs all collectors, including a live-connection gauge over reg
func Register(reg OnlineCounter) {
	prometheus.MustRegister(CorrectionsTotal, CommandsQueuedTotal, HeartbeatsTotal, BroadcastsTotal)
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "switchfleet_devices_online",
			Help: "Devices with a live connection",
		},
		func() float64 { return float64(reg.OnlineCount()) },
	))
}

// Sink counts broadcast events by type; wire it into the broadcaster
func Sink(ev models.Event) {
	BroadcastsTotal.WithLabelValues(ev.Type).Inc()
}

// Handler exposes the prometheus scrape endpoint as a gin handler
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
