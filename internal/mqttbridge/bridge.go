package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"switchfleet/internal/db"
	"switchfleet/internal/metrics"
	"switchfleet/internal/models"
	"switchfleet/internal/registry"
)

const (
	heartbeatTopic  = "switch/+/heartbeat"
	commandTopicFmt = "switch/%s/cmd"
	eventsTopic     = "switchfleet/events"

	// a device is addressable over MQTT only while its broker heartbeats
	// are at most this old
	presenceWindow = 60 * time.Second
)

// heartbeatPayload is the telemetry body devices publish over MQTT
type heartbeatPayload struct {
	SwitchState    bool    `json:"switch_state"`
	CurrentReading float64 `json:"current_reading"`
	Voltage        float64 `json:"voltage"`
}

// Rearmer re-arms reconciliation after a heartbeat
type Rearmer interface {
	OnHeartbeat(deviceID string)
}

// Bridge ingests device heartbeats published over MQTT (for firmware that
// prefers a broker over a direct WebSocket) and serves as the secondary
// command channel for devices heard there. Broadcast events are mirrored to
// an MQTT topic for external integrations.
type Bridge struct {
	client mqtt.Client
	store  *db.DB
	events *registry.Broadcaster

	mu   sync.Mutex
	seen map[string]time.Time
	rec  Rearmer
}

// New connects to the broker and returns a bridge
func New(broker, clientID string, store *db.DB, events *registry.Broadcaster) (*Bridge, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Bridge{
		client: client,
		store:  store,
		events: events,
		seen:   make(map[string]time.Time),
	}, nil
}

// SetRearmer binds the reconciliation trigger; heartbeats arriving before
// this is called still persist, they just do not re-arm.
func (b *Bridge) SetRearmer(r Rearmer) {
	b.mu.Lock()
	b.rec = r
	b.mu.Unlock()
}

// Start subscribes to device heartbeats
func (b *Bridge) Start() error {
	log.Printf("MQTT: subscribing to %s", heartbeatTopic)
	token := b.client.Subscribe(heartbeatTopic, 1, b.onHeartbeat)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Stop disconnects from the broker
func (b *Bridge) Stop() {
	b.client.Disconnect(250)
	log.Println("MQTT: bridge stopped")
}

// Sender is the delivery surface the bridge can layer under
type Sender interface {
	Send(deviceID string, v interface{}) bool
}

type fallbackSender struct {
	bridge  *Bridge
	primary Sender
}

// WrapSender returns a sender that tries the primary transport first and
// falls back to the device's MQTT command topic when the device was heard
// over the broker recently.
func (b *Bridge) WrapSender(primary Sender) Sender {
	return &fallbackSender{bridge: b, primary: primary}
}

func (s *fallbackSender) Send(deviceID string, v interface{}) bool {
	if s.primary.Send(deviceID, v) {
		return true
	}
	return s.bridge.publishCommand(deviceID, v)
}

func (b *Bridge) publishCommand(deviceID string, v interface{}) bool {
	b.mu.Lock()
	seen := b.seen[deviceID]
	b.mu.Unlock()
	if time.Since(seen) > presenceWindow {
		return false
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return false
	}
	token := b.client.Publish(fmt.Sprintf(commandTopicFmt, deviceID), 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("MQTT: command publish to %s failed: %v", deviceID, token.Error())
		return false
	}
	log.Printf("MQTT: delivered command to %s over broker", deviceID)
	return true
}

// deviceIDFromTopic extracts the device id from switch/{id}/heartbeat
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 3 {
		return parts[1]
	}
	return ""
}

func (b *Bridge) onHeartbeat(client mqtt.Client, msg mqtt.Message) {
	deviceID := deviceIDFromTopic(msg.Topic())
	if deviceID == "" {
		log.Printf("MQTT: unparseable topic %q", msg.Topic())
		return
	}

	var payload heartbeatPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		log.Printf("MQTT: bad heartbeat from %s: %v", deviceID, err)
		return
	}

	ctx := context.Background()
	if _, err := b.store.GetDevice(ctx, deviceID); err != nil {
		log.Printf("MQTT: heartbeat from unregistered device %s", deviceID)
		return
	}
	if err := b.store.MarkOnline(ctx, deviceID); err != nil {
		log.Printf("MQTT: mark online failed for %s: %v", deviceID, err)
	}

	sample := &models.StateSample{
		DeviceID:       deviceID,
		SwitchState:    payload.SwitchState,
		CurrentReading: payload.CurrentReading,
		Voltage:        payload.Voltage,
	}
	if err := b.store.AppendSample(ctx, sample); err != nil {
		log.Printf("MQTT: sample append failed for %s: %v", deviceID, err)
		return
	}
	metrics.HeartbeatsTotal.Inc()

	b.mu.Lock()
	b.seen[deviceID] = time.Now()
	rec := b.rec
	b.mu.Unlock()

	b.events.Broadcast(models.UpdateEvent(deviceID, map[string]interface{}{
		"switch_state":    sample.SwitchState,
		"current_reading": sample.CurrentReading,
		"voltage":         sample.Voltage,
	}))
	if rec != nil {
		rec.OnHeartbeat(deviceID)
	}
}

// EventSink mirrors every broadcast event onto the events topic; wire it into
// the broadcaster. Best-effort, fire and forget.
func (b *Bridge) EventSink(ev models.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b.client.Publish(eventsTopic, 0, false, payload)
}
