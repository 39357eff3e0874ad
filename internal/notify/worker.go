package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"switchfleet/internal/models"
)

// SubscriptionStore provides the push endpoints of a device's owner.
type SubscriptionStore interface {
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	SubscriptionsForDevice(ctx context.Context, deviceID string) ([]models.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Sender sends one web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool pushes device events (offline transitions, schedule corrections)
// to the owning user's browser. Jobs are buffered so Sink never blocks the
// broadcast path.
type WorkerPool struct {
	size    int
	jobs    chan models.Event
	store   SubscriptionStore
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a worker pool. Pass nil options to disable sending
// (events are still drained).
func NewWorkerPool(size int, store SubscriptionStore, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan models.Event, 64),
		store:   store,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case ev := <-wp.jobs:
			wp.process(ctx, ev)
		case <-ctx.Done():
			log.Printf("NOTIFY: worker %d shutting down", id)
			return
		}
	}
}

// Sink enqueues an event for push delivery; wire it into the broadcaster.
// Drops on a full queue rather than blocking the caller.
func (wp *WorkerPool) Sink(ev models.Event) {
	switch ev.Type {
	case models.EventScheduleCorrection:
	case models.EventDeviceStatus:
		if ev.IsOnline == nil || *ev.IsOnline {
			return
		}
	default:
		return
	}

	select {
	case wp.jobs <- ev:
	default:
		log.Printf("NOTIFY: queue full, dropping %s for %s", ev.Type, ev.DeviceID)
	}
}

func (wp *WorkerPool) process(ctx context.Context, ev models.Event) {
	subs, err := wp.store.SubscriptionsForDevice(ctx, ev.DeviceID)
	if err != nil {
		log.Printf("NOTIFY: fetching subscriptions for %s: %v", ev.DeviceID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	name := ev.DeviceID
	if dev, err := wp.store.GetDevice(ctx, ev.DeviceID); err == nil && dev.Name != "" {
		name = dev.Name
	}

	var message string
	switch ev.Type {
	case models.EventDeviceStatus:
		message = fmt.Sprintf("%s went offline", name)
	case models.EventScheduleCorrection:
		message = fmt.Sprintf("%s was corrected by schedule %q", name, ev.Correction.ScheduleName)
	default:
		return
	}

	log.Printf("NOTIFY: sending %d notifications for %s", len(subs), ev.DeviceID)
	for _, sub := range subs {
		wp.send(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub models.PushSubscription, payload []byte) {
	if wp.webpush == nil {
		return
	}
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("NOTIFY: sending to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("NOTIFY: subscription %s expired, deleting", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("NOTIFY: deleting expired subscription: %v", err)
		}
	}
}
