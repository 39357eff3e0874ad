package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"switchfleet/auth"
	"switchfleet/internal/clock"
	"switchfleet/internal/config"
	"switchfleet/internal/db"
	"switchfleet/internal/dispatch"
	"switchfleet/internal/metrics"
	"switchfleet/internal/models"
	"switchfleet/internal/mqttbridge"
	"switchfleet/internal/notify"
	"switchfleet/internal/presence"
	"switchfleet/internal/reconcile"
	"switchfleet/internal/redis"
	"switchfleet/internal/registry"
	"switchfleet/internal/taskqueue"
	"switchfleet/internal/transport"
	"switchfleet/internal/web"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("MAIN: unknown timezone %q, using local", cfg.Timezone)
		loc = time.Local
	}
	clk := clock.NewWall(loc)

	store, err := db.NewDB(cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer store.Close()

	redisClient := redis.NewRedisClient(cfg.RedisAddr)
	store.WithSampleCache(redis.NewSampleCache(redisClient))

	authModule := auth.NewModule(store.Pool(), cfg.JWTSecret)

	// The registry hook closes over the broadcaster, which is built from the
	// registry itself. Both are assigned before any connection can arrive.
	var events *registry.Broadcaster
	reg := registry.New(func(deviceID string, online bool) {
		ctx := context.Background()
		var err error
		if online {
			err = store.MarkOnline(ctx, deviceID)
		} else {
			err = store.MarkOffline(ctx, deviceID)
		}
		if err != nil {
			log.Printf("MAIN: presence update for %s: %v", deviceID, err)
		}
		events.Broadcast(models.StatusEvent(deviceID, online))
	})
	events = registry.NewBroadcaster(reg)
	events.AddSink(metrics.Sink)
	metrics.Register(reg)

	// With a broker configured, commands fall back to the device's MQTT
	// topic before hitting the durable queue.
	var bridge *mqttbridge.Bridge
	var sender dispatch.Sender = reg
	if cfg.MQTTBroker != "" {
		bridge, err = mqttbridge.New(cfg.MQTTBroker, cfg.MQTTClientID, store, events)
		if err != nil {
			log.Fatalf("Failed to connect to MQTT: %v", err)
		}
		sender = bridge.WrapSender(reg)
	}
	dispatcher := dispatch.New(sender, store)

	rec := reconcile.New(reconcile.Config{
		SettleDelay: cfg.SettleDelay,
		GracePeriod: cfg.GracePeriod,
		ArmDebounce: cfg.ArmDebounce,
	}, clk, store, store, dispatcher, events, taskqueue.EnqueueCheck)
	taskqueue.SetReconciler(rec)
	go taskqueue.StartWorkers(cfg.RedisAddr)

	if bridge != nil {
		bridge.SetRearmer(rec)
		if err := bridge.Start(); err != nil {
			log.Fatalf("Failed to start MQTT bridge: %v", err)
		}
		events.AddSink(bridge.EventSink)
	}

	var webpushOptions *webpush.Options
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		webpushOptions = &webpush.Options{
			Subscriber:      cfg.VAPIDSubscriber,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             60,
		}
	}
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	notifier := notify.NewWorkerPool(4, store, webpushOptions)
	notifier.Start(notifyCtx)
	events.AddSink(notifier.Sink)

	sweeper := presence.New(store, events, cfg.SweepInterval, cfg.OfflineAfter)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start presence sweeper: %v", err)
	}

	if err := rec.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start reconciler: %v", err)
	}

	hub := transport.NewHub(reg, events, store, authModule, rec)
	webServer := web.NewWebServer(store, authModule, reg, events, sender, dispatcher, rec, hub, webpushOptions)
	go func() {
		if err := webServer.Start(cfg.HTTPAddr); err != nil {
			log.Fatalf("Web server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	rec.Stop()
	sweeper.Stop()
	if bridge != nil {
		bridge.Stop()
	}
	stopNotify()
	taskqueue.StopWorkers()
	log.Println("Shutdown complete")
}
