package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchfleet/internal/models"
)

type fakeStore struct {
	stale [][]string // consumed one slice per sweep
	err   error
}

func (f *fakeStore) MarkStaleOffline(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.stale) == 0 {
		return nil, nil
	}
	ids := f.stale[0]
	f.stale = f.stale[1:]
	return ids, nil
}

type fakeBroadcaster struct {
	events []models.Event
}

func (f *fakeBroadcaster) Broadcast(ev models.Event) {
	f.events = append(f.events, ev)
}

func TestSweepBroadcastsEachTransitionOnce(t *testing.T) {
	store := &fakeStore{stale: [][]string{{"d1", "d2"}}}
	events := &fakeBroadcaster{}
	s := New(store, events, 30*time.Second, time.Minute)

	s.sweep()
	require.Len(t, events.events, 2)
	for i, id := range []string{"d1", "d2"} {
		ev := events.events[i]
		assert.Equal(t, models.EventDeviceStatus, ev.Type)
		assert.Equal(t, id, ev.DeviceID)
		require.NotNil(t, ev.IsOnline)
		assert.False(t, *ev.IsOnline)
	}

	// Devices stay offline on the next sweep: no duplicate broadcasts
	s.sweep()
	assert.Len(t, events.events, 2)
}

func TestSweepStoreErrorSwallowed(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	events := &fakeBroadcaster{}
	s := New(store, events, 30*time.Second, time.Minute)

	s.sweep()
	assert.Empty(t, events.events)
}
