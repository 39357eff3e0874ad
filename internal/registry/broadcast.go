package registry

import (
	"switchfleet/internal/models"
)

// Sink receives every broadcast event on a side channel (notifications,
// metrics). Sinks must not block.
type Sink func(models.Event)

// Broadcaster fans events out to all connected user handles. Delivery is
// best-effort: a closed or erroring handle is skipped, nothing is retried.
type Broadcaster struct {
	reg   *Registry
	sinks []Sink
}

// NewBroadcaster creates a broadcaster over reg
func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// AddSink registers an additional consumer of broadcast events.
// Not safe to call after Broadcast is in use.
func (b *Broadcaster) AddSink(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Broadcast sends ev to every connected user handle and every sink
func (b *Broadcaster) Broadcast(ev models.Event) {
	for _, conn := range b.reg.UserConns() {
		conn.Send(ev)
	}
	for _, sink := range b.sinks {
		sink(ev)
	}
}
