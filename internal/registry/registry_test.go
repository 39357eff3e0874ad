package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchfleet/internal/models"
)

// fakeConn records sends and can be made to refuse writes
type fakeConn struct {
	mu     sync.Mutex
	sent   []interface{}
	broken bool
	closed bool
}

func (c *fakeConn) Send(v interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return false
	}
	c.sent = append(c.sent, v)
	return true
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestRegisterDeviceMarksOnline(t *testing.T) {
	var transitions []bool
	reg := New(func(id string, online bool) {
		assert.Equal(t, "d1", id)
		transitions = append(transitions, online)
	})

	conn := &fakeConn{}
	reg.RegisterDevice("d1", conn)

	assert.True(t, reg.IsOnline("d1"))
	assert.Equal(t, 1, reg.OnlineCount())

	reg.Unregister(conn)
	assert.False(t, reg.IsOnline("d1"))
	assert.Equal(t, []bool{true, false}, transitions)
}

func TestRegisterDeviceReplacesPriorHandle(t *testing.T) {
	reg := New(nil)
	old := &fakeConn{}
	reg.RegisterDevice("d1", old)

	newer := &fakeConn{}
	reg.RegisterDevice("d1", newer)
	assert.True(t, old.closed)

	// The stale handle's disconnect must not take the device offline
	reg.Unregister(old)
	assert.True(t, reg.IsOnline("d1"))

	require.True(t, reg.Send("d1", "ping"))
	assert.Equal(t, 1, newer.sentCount())
	assert.Equal(t, 0, old.sentCount())
}

func TestSendToOfflineDevice(t *testing.T) {
	reg := New(nil)
	assert.False(t, reg.Send("ghost", "ping"))
}

func TestSendToStaleHandle(t *testing.T) {
	reg := New(nil)
	conn := &fakeConn{broken: true}
	reg.RegisterDevice("d1", conn)
	assert.False(t, reg.Send("d1", "ping"))
}

func TestUserMultipleConnections(t *testing.T) {
	reg := New(nil)
	a, b := &fakeConn{}, &fakeConn{}
	reg.RegisterUser(7, a)
	reg.RegisterUser(7, b)
	assert.Len(t, reg.UserConns(), 2)

	reg.Unregister(a)
	assert.Len(t, reg.UserConns(), 1)
	reg.Unregister(b)
	assert.Empty(t, reg.UserConns())
}

func TestBroadcastSkipsBrokenConns(t *testing.T) {
	reg := New(nil)
	ok, broken := &fakeConn{}, &fakeConn{broken: true}
	reg.RegisterUser(1, ok)
	reg.RegisterUser(2, broken)

	var sinkEvents []models.Event
	b := NewBroadcaster(reg)
	b.AddSink(func(ev models.Event) { sinkEvents = append(sinkEvents, ev) })

	b.Broadcast(models.StatusEvent("d1", false))

	assert.Equal(t, 1, ok.sentCount())
	assert.Equal(t, 0, broken.sentCount())
	require.Len(t, sinkEvents, 1)
	assert.Equal(t, models.EventDeviceStatus, sinkEvents[0].Type)
}
