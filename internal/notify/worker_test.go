package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"

	"switchfleet/internal/models"
)

type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type fakeStore struct {
	mu      sync.Mutex
	subs    map[string][]models.PushSubscription
	devices map[string]*models.Device
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:    make(map[string][]models.PushSubscription),
		devices: make(map[string]*models.Device),
	}
}

func (f *fakeStore) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dev, ok := f.devices[id]; ok {
		return dev, nil
	}
	return nil, context.Canceled
}

func (f *fakeStore) SubscriptionsForDevice(ctx context.Context, deviceID string) ([]models.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[deviceID], nil
}

func (f *fakeStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusCreated,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func TestSinkFiltersEvents(t *testing.T) {
	wp := NewWorkerPool(1, newFakeStore(), &webpush.Options{})

	online := true
	wp.Sink(models.Event{Type: models.EventDeviceStatus, DeviceID: "d1", IsOnline: &online})
	wp.Sink(models.UpdateEvent("d1", nil))
	assert.Empty(t, wp.jobs, "online transitions and telemetry updates are not pushed")

	wp.Sink(models.StatusEvent("d1", false))
	assert.Len(t, wp.jobs, 1)
}

func TestWorkerSendsOfflineNotification(t *testing.T) {
	store := newFakeStore()
	store.devices["plug-1"] = &models.Device{ID: "plug-1", Name: "Kitchen plug"}
	store.subs["plug-1"] = []models.PushSubscription{
		{Endpoint: "https://example.com/push", P256DH: "p", Auth: "a"},
	}

	wp := NewWorkerPool(1, store, &webpush.Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			assert.Equal(t, "https://example.com/push", sub.Endpoint)
			assert.Equal(t, "Kitchen plug went offline", string(payload))
			wg.Done()
			return okResponse(), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Sink(models.StatusEvent("plug-1", false))
	wg.Wait()
}

func TestWorkerDeletesExpiredSubscription(t *testing.T) {
	store := newFakeStore()
	store.devices["plug-2"] = &models.Device{ID: "plug-2", Name: "Heater"}
	store.subs["plug-2"] = []models.PushSubscription{
		{Endpoint: "https://example.com/expired", P256DH: "p", Auth: "a"},
	}

	wp := NewWorkerPool(1, store, &webpush.Options{})
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusGone,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Sink(models.StatusEvent("plug-2", false))

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.deleted) == 1 && store.deleted[0] == "https://example.com/expired"
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerNotifiesOnCorrection(t *testing.T) {
	store := newFakeStore()
	store.devices["plug-3"] = &models.Device{ID: "plug-3", Name: "Lamp"}
	store.subs["plug-3"] = []models.PushSubscription{
		{Endpoint: "https://example.com/c", P256DH: "p", Auth: "a"},
	}

	wp := NewWorkerPool(1, store, &webpush.Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			assert.Equal(t, `Lamp was corrected by schedule "evening off"`, string(payload))
			wg.Done()
			return okResponse(), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Sink(models.CorrectionEvent(&models.CorrectionRecord{
		DeviceID:     "plug-3",
		ScheduleID:   7,
		ScheduleName: "evening off",
	}))
	wg.Wait()
}
