package reconcile

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"switchfleet/internal/clock"
	"switchfleet/internal/dispatch"
	"switchfleet/internal/metrics"
	"switchfleet/internal/models"
	"switchfleet/internal/schedule"
)

// ScheduleStore is the schedule-side collaborator
type ScheduleStore interface {
	ListEnabledSchedules(ctx context.Context, deviceID string) ([]models.Schedule, error)
	ListDevicesWithSchedules(ctx context.Context) ([]string, error)
}

// StateStore is the telemetry/correction-side collaborator
type StateStore interface {
	LatestSample(ctx context.Context, deviceID string) (*models.StateSample, error)
	AppendCorrection(ctx context.Context, rec *models.CorrectionRecord) error
}

// Dispatcher delivers or queues correction commands
type Dispatcher interface {
	Dispatch(ctx context.Context, deviceID string, cmd dispatch.Command) (dispatch.Result, error)
}

// Broadcaster fans correction events out to connected users
type Broadcaster interface {
	Broadcast(ev models.Event)
}

// CheckRequest identifies one verification: the device and the specific
// schedule occurrence that was armed for it.
type CheckRequest struct {
	DeviceID     string `json:"device_id"`
	ScheduleID   int    `json:"schedule_id"`
	ScheduleName string `json:"schedule_name"`
	Action       string `json:"action"`
}

// Enqueuer hands a fired check off for asynchronous execution. When nil the
// reconciler runs checks inline on the timer goroutine.
type Enqueuer func(req CheckRequest) error

// Per-device timer states
const (
	stateIdle = iota
	stateArmed
	stateChecking
)

// Config carries the reconciliation timing knobs
type Config struct {
	// SettleDelay is added after the exact trigger minute before verifying,
	// to tolerate device-side execution jitter.
	SettleDelay time.Duration
	// GracePeriod shields evaluation from occurrences triggered moments ago.
	GracePeriod time.Duration
	// ArmDebounce suppresses re-entrant arm storms from rapid mutations.
	ArmDebounce time.Duration
}

// deviceTimer is the single owned timer handle per device. The last-armed-at
// debounce stamp lives here, next to the timer it guards. gen stamps the
// outstanding callback: every re-arm or cancel bumps it, so a fire that lost
// the race to a newer arm sees a stale generation and steps aside instead of
// orphaning the replacement timer.
type deviceTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	state   int
	gen     uint64
	armedAt time.Time
	target  models.Schedule
	fireAt  time.Time
}

// Reconciler enforces schedules against actual device state. One timer per
// device, armed for the next occurrence plus the settle delay; on fire it
// verifies the latest sample against the armed schedule's action, corrects a
// mismatch through the dispatcher, and re-arms for the following occurrence.
type Reconciler struct {
	cfg        Config
	clock      clock.Clock
	schedules  ScheduleStore
	states     StateStore
	dispatcher Dispatcher
	events     Broadcaster
	enqueue    Enqueuer

	mu      sync.Mutex
	devices map[string]*deviceTimer
}

// New creates a reconciler. enqueue may be nil for inline checking.
func New(cfg Config, clk clock.Clock, schedules ScheduleStore, states StateStore, dispatcher Dispatcher, events Broadcaster, enqueue Enqueuer) *Reconciler {
	return &Reconciler{
		cfg:        cfg,
		clock:      clk,
		schedules:  schedules,
		states:     states,
		dispatcher: dispatcher,
		events:     events,
		enqueue:    enqueue,
		devices:    make(map[string]*deviceTimer),
	}
}

// Start arms every device that has at least one enabled schedule
func (r *Reconciler) Start(ctx context.Context) error {
	ids, err := r.schedules.ListDevicesWithSchedules(ctx)
	if err != nil {
		return err
	}
	log.Printf("RECONCILE: arming %d devices at startup", len(ids))
	for _, id := range ids {
		r.Arm(id)
	}
	return nil
}

// Stop cancels every timer
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, dt := range r.devices {
		dt.mu.Lock()
		dt.gen++
		if dt.timer != nil {
			dt.timer.Stop()
			dt.timer = nil
		}
		dt.state = stateIdle
		dt.mu.Unlock()
		delete(r.devices, id)
	}
	log.Println("RECONCILE: stopped")
}

func (r *Reconciler) timerFor(deviceID string) *deviceTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	dt, ok := r.devices[deviceID]
	if !ok {
		dt = &deviceTimer{}
		r.devices[deviceID] = dt
	}
	return dt
}

// Arm computes the device's next occurrence and installs a single timer for
// it, cancelling any existing one first. Calls within the debounce window of
// the previous arm for the same device are ignored.
func (r *Reconciler) Arm(deviceID string) {
	r.arm(deviceID, false)
}

func (r *Reconciler) arm(deviceID string, force bool) {
	dt := r.timerFor(deviceID)
	dt.mu.Lock()
	defer dt.mu.Unlock()

	now := r.clock.Now()
	if !force && !dt.armedAt.IsZero() && now.Sub(dt.armedAt) < r.cfg.ArmDebounce {
		return
	}
	dt.armedAt = now

	schedules, err := r.schedules.ListEnabledSchedules(context.Background(), deviceID)
	if err != nil {
		log.Printf("RECONCILE: failed to load schedules for %s: %v", deviceID, err)
		return
	}

	// Invalidate any outstanding callback before touching the timer: a fire
	// racing this arm compares generations and backs off.
	dt.gen++
	if dt.timer != nil {
		dt.timer.Stop()
		dt.timer = nil
	}

	occ, ok := schedule.NextOccurrence(schedules, now)
	if !ok {
		dt.state = stateIdle
		return
	}

	delay := occ.FireAt.Add(r.cfg.SettleDelay).Sub(now)
	if delay < 0 {
		delay = r.cfg.SettleDelay
	}
	dt.state = stateArmed
	dt.target = occ.Schedule
	dt.fireAt = occ.FireAt
	gen := dt.gen
	dt.timer = time.AfterFunc(delay, func() { r.fired(deviceID, gen) })
	log.Printf("RECONCILE: armed %s for schedule %d (%s) at %s",
		deviceID, occ.Schedule.ID, occ.Schedule.Name, occ.FireAt.Format("Mon 15:04"))
}

// fired runs on the timer goroutine: hand the check off, then re-arm for the
// next occurrence regardless of the check's outcome. A callback whose
// generation was superseded by a newer arm or cancel does nothing.
func (r *Reconciler) fired(deviceID string, gen uint64) {
	dt := r.timerFor(deviceID)
	dt.mu.Lock()
	if gen != dt.gen {
		dt.mu.Unlock()
		return
	}
	dt.state = stateChecking
	if dt.timer != nil {
		dt.timer.Stop()
		dt.timer = nil
	}
	req := CheckRequest{
		DeviceID:     deviceID,
		ScheduleID:   dt.target.ID,
		ScheduleName: dt.target.Name,
		Action:       dt.target.Action,
	}
	dt.mu.Unlock()

	if r.enqueue != nil {
		if err := r.enqueue(req); err != nil {
			log.Printf("RECONCILE: failed to enqueue check for %s: %v", deviceID, err)
		}
	} else if err := r.RunCheck(context.Background(), req); err != nil {
		log.Printf("RECONCILE: check failed for %s: %v", deviceID, err)
	}

	r.arm(deviceID, true)
}

// RunCheck verifies actual state against the armed schedule's action and
// corrects a mismatch: one dispatch, one correction record, one broadcast.
// Store errors are returned so the task queue can retry; the next natural
// re-arm covers the failure either way.
func (r *Reconciler) RunCheck(ctx context.Context, req CheckRequest) error {
	sample, err := r.states.LatestSample(ctx, req.DeviceID)
	if err != nil {
		return err
	}
	if sample == nil {
		log.Printf("RECONCILE: no telemetry for %s, skipping check", req.DeviceID)
		return nil
	}

	expected := req.Action == models.ActionTurnOn
	if sample.SwitchState == expected {
		log.Printf("RECONCILE: %s in sync with schedule %d (%s)", req.DeviceID, req.ScheduleID, req.ScheduleName)
		return nil
	}

	log.Printf("RECONCILE: %s mismatch on schedule %d (%s): expected %t, actual %t",
		req.DeviceID, req.ScheduleID, req.ScheduleName, expected, sample.SwitchState)

	cmd := dispatch.NewCommand(models.CommandTypeSwitch, strconv.FormatBool(expected), "schedule:"+req.ScheduleName)
	if _, err := r.dispatcher.Dispatch(ctx, req.DeviceID, cmd); err != nil {
		// A device deleted mid-flight lands here via the commands FK; the
		// correction is a no-op.
		log.Printf("RECONCILE: correction dispatch failed for %s: %v", req.DeviceID, err)
		return nil
	}

	rec := &models.CorrectionRecord{
		DeviceID:     req.DeviceID,
		Expected:     expected,
		Actual:       sample.SwitchState,
		ScheduleID:   req.ScheduleID,
		ScheduleName: req.ScheduleName,
		CorrectedAt:  r.clock.Now(),
	}
	if err := r.states.AppendCorrection(ctx, rec); err != nil {
		return err
	}
	metrics.CorrectionsTotal.Inc()
	r.events.Broadcast(models.CorrectionEvent(rec))
	return nil
}

// CancelDevice stops and discards the device's timer. Called on device
// deletion so no check can fire against a gone device.
func (r *Reconciler) CancelDevice(deviceID string) {
	r.mu.Lock()
	dt, ok := r.devices[deviceID]
	if ok {
		delete(r.devices, deviceID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	dt.mu.Lock()
	dt.gen++
	if dt.timer != nil {
		dt.timer.Stop()
		dt.timer = nil
	}
	dt.state = stateIdle
	dt.mu.Unlock()
	log.Printf("RECONCILE: cancelled timer for deleted device %s", deviceID)
}
