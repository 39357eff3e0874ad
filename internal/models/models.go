package models

import "time"

// Schedule actions
const (
	ActionTurnOn  = "turn_on"
	ActionTurnOff = "turn_off"
)

// Command types and statuses
const (
	CommandTypeSwitch   = "switch"
	CommandTypeSchedule = "schedule"

	CommandStatusPending = "pending"
	CommandStatusSent    = "sent"
)

// Device represents a registered switch unit
type Device struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Model     string     `json:"model"`
	UserID    int        `json:"user_id"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen"`
	CreatedAt time.Time  `json:"created_at"`
}

// DeviceWithState is a device joined with its latest telemetry sample
type DeviceWithState struct {
	Device
	Username       string   `json:"username,omitempty"`
	SwitchState    *bool    `json:"switch_state"`
	CurrentReading *float64 `json:"current_reading"`
	Voltage        *float64 `json:"voltage"`
}

// Schedule is a weekly recurring on/off rule for one device
type Schedule struct {
	ID         int       `json:"id"`
	DeviceID   string    `json:"device_id"`
	Name       string    `json:"name"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	Action     string    `json:"action"`
	Days       Weekdays  `json:"days"`
	Enabled    bool      `json:"enabled"`
	RepeatType string    `json:"repeat_type"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StateSample is one immutable telemetry reading from a device
type StateSample struct {
	ID             int64     `json:"id"`
	DeviceID       string    `json:"device_id"`
	SwitchState    bool      `json:"switch_state"`
	CurrentReading float64   `json:"current_reading"`
	Voltage        float64   `json:"voltage"`
	Timestamp      time.Time `json:"timestamp"`
}

// QueuedCommand is a command persisted for an unreachable device
type QueuedCommand struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Type      string    `json:"command_type"`
	Value     string    `json:"command_value"`
	Reason    string    `json:"reason,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CorrectionRecord logs one schedule-reconciliation correction
type CorrectionRecord struct {
	ID           int64     `json:"id"`
	DeviceID     string    `json:"device_id"`
	Expected     bool      `json:"expected"`
	Actual       bool      `json:"actual"`
	ScheduleID   int       `json:"schedule_id"`
	ScheduleName string    `json:"schedule_name"`
	CorrectedAt  time.Time `json:"corrected_at"`
}

// PushSubscription is a web-push endpoint registered by a user
type PushSubscription struct {
	ID       int64  `json:"id"`
	UserID   int    `json:"user_id"`
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Event kinds broadcast to user connections
const (
	EventDeviceStatus       = "device_status"
	EventDeviceUpdate       = "device_update"
	EventScheduleCorrection = "schedule_correction"
)

// Event is the payload fanned out to connected users
type Event struct {
	Type       string                 `json:"type"`
	DeviceID   string                 `json:"deviceId"`
	IsOnline   *bool                  `json:"isOnline,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Correction *CorrectionRecord      `json:"correction,omitempty"`
}

// StatusEvent builds a device_status event
func StatusEvent(deviceID string, online bool) Event {
	return Event{Type: EventDeviceStatus, DeviceID: deviceID, IsOnline: &online}
}

// UpdateEvent builds a device_update event
func UpdateEvent(deviceID string, data map[string]interface{}) Event {
	return Event{Type: EventDeviceUpdate, DeviceID: deviceID, Data: data}
}

// CorrectionEvent builds a schedule_correction event
func CorrectionEvent(rec *CorrectionRecord) Event {
	return Event{Type: EventScheduleCorrection, DeviceID: rec.DeviceID, Correction: rec}
}
