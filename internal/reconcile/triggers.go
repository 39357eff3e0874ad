package reconcile

import (
	"context"
	"log"

	"switchfleet/internal/models"
	"switchfleet/internal/schedule"
)

// OnScheduleChanged re-arms after any schedule mutation for the device
func (r *Reconciler) OnScheduleChanged(deviceID string) {
	r.Arm(deviceID)
}

// OnDeviceConnected re-arms when a device's transport comes up
func (r *Reconciler) OnDeviceConnected(deviceID string) {
	r.Arm(deviceID)
}

// OnDeviceDisconnected is deliberately passive: reconciliation continues for
// offline devices so queued corrections are ready when they return.
func (r *Reconciler) OnDeviceDisconnected(deviceID string) {
	log.Printf("RECONCILE: %s offline, timer kept", deviceID)
}

// OnHeartbeat opportunistically re-arms on telemetry; the debounce keeps
// frequent heartbeats cheap.
func (r *Reconciler) OnHeartbeat(deviceID string) {
	r.Arm(deviceID)
}

// Verification is the result of a manual expected-vs-actual comparison.
// Expected is nil when the schedule set has no opinion; Actual is nil when
// the device has never reported a sample.
type Verification struct {
	Expected *bool            `json:"expected"`
	Actual   *bool            `json:"actual"`
	Schedule *models.Schedule `json:"schedule,omitempty"`
	Mismatch bool             `json:"mismatch"`
}

// VerifyNow compares schedule-implied state against the latest reported
// sample without waiting for the timer, then re-arms the device.
func (r *Reconciler) VerifyNow(ctx context.Context, deviceID string) (Verification, error) {
	schedules, err := r.schedules.ListEnabledSchedules(ctx, deviceID)
	if err != nil {
		return Verification{}, err
	}
	sample, err := r.states.LatestSample(ctx, deviceID)
	if err != nil {
		return Verification{}, err
	}

	var v Verification
	if exp, ok := schedule.ExpectedState(schedules, r.clock.Now(), r.cfg.GracePeriod); ok {
		state := exp.State
		sched := exp.Schedule
		v.Expected = &state
		v.Schedule = &sched
	}
	if sample != nil {
		actual := sample.SwitchState
		v.Actual = &actual
	}
	v.Mismatch = v.Expected != nil && v.Actual != nil && *v.Expected != *v.Actual

	r.Arm(deviceID)
	return v, nil
}

// NextOccurrence reports the device's next scheduled action for the UI
func (r *Reconciler) NextOccurrence(ctx context.Context, deviceID string) (schedule.Occurrence, bool, error) {
	schedules, err := r.schedules.ListEnabledSchedules(ctx, deviceID)
	if err != nil {
		return schedule.Occurrence{}, false, err
	}
	occ, ok := schedule.NextOccurrence(schedules, r.clock.Now())
	return occ, ok, nil
}
