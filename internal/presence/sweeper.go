package presence

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"switchfleet/internal/models"
)

// Store marks stale devices offline
type Store interface {
	MarkStaleOffline(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Broadcaster fans status transitions out to connected users
type Broadcaster interface {
	Broadcast(ev models.Event)
}

// Sweeper periodically marks devices offline after a missed-heartbeat timeout
// and broadcasts each transition exactly once. The store only returns devices
// that were still flagged online, so repeated sweeps over an offline device
// emit nothing.
type Sweeper struct {
	cron         *cron.Cron
	store        Store
	events       Broadcaster
	interval     time.Duration
	offlineAfter time.Duration
}

// New creates a sweeper
func New(store Store, events Broadcaster, interval, offlineAfter time.Duration) *Sweeper {
	return &Sweeper{
		cron:         cron.New(),
		store:        store,
		events:       events,
		interval:     interval,
		offlineAfter: offlineAfter,
	}
}

// Start begins the periodic sweep
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("PRESENCE: sweeper started (%s interval, %s timeout)", s.interval, s.offlineAfter)
	return nil
}

// Stop halts the sweep, waiting for a running pass to finish
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("PRESENCE: sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	ids, err := s.store.MarkStaleOffline(ctx, s.offlineAfter)
	if err != nil {
		log.Printf("PRESENCE: sweep failed: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	log.Printf("PRESENCE: marked %d devices offline", len(ids))
	for _, id := range ids {
		s.events.Broadcast(models.StatusEvent(id, false))
	}
}
