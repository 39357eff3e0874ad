package dispatch

import (
	"context"
	"log"

	"switchfleet/internal/metrics"
	"switchfleet/internal/models"
)

// Command is the wire frame a device receives over its live connection
type Command struct {
	Kind   string `json:"type"`
	Type   string `json:"command_type"`
	Value  string `json:"command_value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// NewCommand builds a device command frame
func NewCommand(commandType, value, reason string) Command {
	return Command{Kind: "command", Type: commandType, Value: value, Reason: reason}
}

// Sender delivers a message to a device's live handle if one exists
type Sender interface {
	Send(deviceID string, v interface{}) bool
}

// CommandStore durably queues commands for unreachable devices
type CommandStore interface {
	EnqueueCommand(ctx context.Context, cmd *models.QueuedCommand) error
}

// Result reports how a dispatch was handled
type Result struct {
	Delivered bool  `json:"delivered"`
	CommandID int64 `json:"command_id,omitempty"`
}

// Dispatcher delivers a command directly when the device is connected and
// queues it durably otherwise. An unreachable device is an expected condition,
// never an error; queued commands are drained by the device's own poll or
// reconnect path.
type Dispatcher struct {
	sender Sender
	store  CommandStore
}

// New creates a dispatcher
func New(sender Sender, store CommandStore) *Dispatcher {
	return &Dispatcher{sender: sender, store: store}
}

// Dispatch sends cmd to deviceID, falling back to the durable queue. The only
// error surface is store unavailability.
func (d *Dispatcher) Dispatch(ctx context.Context, deviceID string, cmd Command) (Result, error) {
	if d.sender.Send(deviceID, cmd) {
		log.Printf("DISPATCH: delivered %s to %s", cmd.Type, deviceID)
		return Result{Delivered: true}, nil
	}

	queued := &models.QueuedCommand{
		DeviceID: deviceID,
		Type:     cmd.Type,
		Value:    cmd.Value,
		Reason:   cmd.Reason,
		Status:   models.CommandStatusPending,
	}
	if err := d.store.EnqueueCommand(ctx, queued); err != nil {
		return Result{}, err
	}
	metrics.CommandsQueuedTotal.Inc()
	log.Printf("DISPATCH: queued %s for offline device %s (command %d)", cmd.Type, deviceID, queued.ID)
	return Result{Delivered: false, CommandID: queued.ID}, nil
}
