package registry

import (
	"log"
	"sync"
)

// Conn is a live transport handle. Send returns false when the write was not
// accepted (closed or erroring connection); it must never panic.
type Conn interface {
	Send(v interface{}) bool
	Close() error
}

// StatusFunc is invoked outside the registry locks whenever a device
// transitions online or offline. Side effects (persistence, broadcasts,
// re-arming) belong to the hook, not the registry.
type StatusFunc func(deviceID string, online bool)

// Registry is the single source of truth for live connections: one handle per
// device, many handles per user. Entries are removed on disconnect and never
// persisted; after a restart every device is offline until it reconnects.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]Conn
	connDev  map[Conn]string
	users    map[int]map[Conn]struct{}
	connUser map[Conn]int
	onStatus StatusFunc
}

// New creates an empty registry. onStatus may be nil.
func New(onStatus StatusFunc) *Registry {
	return &Registry{
		devices:  make(map[string]Conn),
		connDev:  make(map[Conn]string),
		users:    make(map[int]map[Conn]struct{}),
		connUser: make(map[Conn]int),
		onStatus: onStatus,
	}
}

// RegisterDevice records conn as the live handle for deviceID, replacing and
// closing any prior handle for the same device.
func (r *Registry) RegisterDevice(deviceID string, conn Conn) {
	r.mu.Lock()
	if prev, ok := r.devices[deviceID]; ok && prev != conn {
		delete(r.connDev, prev)
		prev.Close()
	}
	r.devices[deviceID] = conn
	r.connDev[conn] = deviceID
	r.mu.Unlock()

	log.Printf("REGISTRY: device %s connected", deviceID)
	if r.onStatus != nil {
		r.onStatus(deviceID, true)
	}
}

// RegisterUser records an additional handle for userID. A user may hold
// several simultaneous connections.
func (r *Registry) RegisterUser(userID int, conn Conn) {
	r.mu.Lock()
	if _, ok := r.users[userID]; !ok {
		r.users[userID] = make(map[Conn]struct{})
	}
	r.users[userID][conn] = struct{}{}
	r.connUser[conn] = userID
	r.mu.Unlock()

	log.Printf("REGISTRY: user %d connected", userID)
}

// Unregister removes whatever mapping (device or user) conn holds. Removing
// the last handle for a user drops the user entry entirely.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	deviceID, wasDevice := r.connDev[conn]
	if wasDevice {
		delete(r.connDev, conn)
		if r.devices[deviceID] == conn {
			delete(r.devices, deviceID)
		} else {
			// A newer handle replaced this one; no offline transition.
			wasDevice = false
		}
	}
	if userID, ok := r.connUser[conn]; ok {
		delete(r.connUser, conn)
		if conns, ok := r.users[userID]; ok {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(r.users, userID)
			}
		}
	}
	r.mu.Unlock()

	if wasDevice {
		log.Printf("REGISTRY: device %s disconnected", deviceID)
		if r.onStatus != nil {
			r.onStatus(deviceID, false)
		}
	}
}

// IsOnline reports whether a live handle exists for deviceID
func (r *Registry) IsOnline(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[deviceID]
	return ok
}

// Send writes v to the device's live handle. Returns true iff a handle existed
// and accepted the write. A stale handle is reported as not delivered and
// evicted on its disconnect notification.
func (r *Registry) Send(deviceID string, v interface{}) bool {
	r.mu.RLock()
	conn, ok := r.devices[deviceID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.Send(v)
}

// UserConns returns a snapshot of every connected user handle
func (r *Registry) UserConns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.connUser))
	for conn := range r.connUser {
		out = append(out, conn)
	}
	return out
}

// OnlineCount returns the number of devices with a live handle
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
