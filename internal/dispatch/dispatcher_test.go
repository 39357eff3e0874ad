package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchfleet/internal/models"
)

type fakeSender struct {
	online bool
	sent   []interface{}
}

func (f *fakeSender) Send(deviceID string, v interface{}) bool {
	if !f.online {
		return false
	}
	f.sent = append(f.sent, v)
	return true
}

type fakeCommandStore struct {
	queued []*models.QueuedCommand
	err    error
}

func (f *fakeCommandStore) EnqueueCommand(ctx context.Context, cmd *models.QueuedCommand) error {
	if f.err != nil {
		return f.err
	}
	cmd.ID = int64(len(f.queued) + 1)
	f.queued = append(f.queued, cmd)
	return nil
}

func TestDispatchDirectWhenOnline(t *testing.T) {
	sender := &fakeSender{online: true}
	store := &fakeCommandStore{}
	d := New(sender, store)

	res, err := d.Dispatch(context.Background(), "d1", NewCommand(models.CommandTypeSwitch, "false", ""))
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Len(t, sender.sent, 1)
	assert.Empty(t, store.queued)
}

func TestDispatchQueuesWhenOffline(t *testing.T) {
	sender := &fakeSender{online: false}
	store := &fakeCommandStore{}
	d := New(sender, store)

	res, err := d.Dispatch(context.Background(), "d1", NewCommand(models.CommandTypeSwitch, "true", "schedule:Morning ON"))
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, int64(1), res.CommandID)

	require.Len(t, store.queued, 1)
	q := store.queued[0]
	assert.Equal(t, "d1", q.DeviceID)
	assert.Equal(t, models.CommandTypeSwitch, q.Type)
	assert.Equal(t, "true", q.Value)
	assert.Equal(t, models.CommandStatusPending, q.Status)
}

func TestDispatchPropagatesStoreError(t *testing.T) {
	sender := &fakeSender{online: false}
	store := &fakeCommandStore{err: errors.New("db down")}
	d := New(sender, store)

	_, err := d.Dispatch(context.Background(), "d1", NewCommand(models.CommandTypeSwitch, "true", ""))
	assert.Error(t, err)
}
