package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"switchfleet/internal/reconcile"
)

// TypeVerify is the schedule-verification task kind
const TypeVerify = "reconcile:verify"

// Global instances - initialized by the main application
var (
	asynqClient *asynq.Client
	reconciler  *reconcile.Reconciler
)

// SetReconciler sets the reconciler the workers run checks on
func SetReconciler(r *reconcile.Reconciler) {
	reconciler = r
}

// EnqueueCheck enqueues a verification for a fired schedule occurrence. Timer
// callbacks hand off here so one device's store latency never delays another
// device's timer.
func EnqueueCheck(req reconcile.CheckRequest) error {
	if asynqClient == nil {
		return fmt.Errorf("task queue not started")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeVerify, payload)
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Timeout(10*time.Second))
	if err != nil {
		return err
	}
	log.Printf("TASKQUEUE: enqueued verification %s for device %s", info.ID, req.DeviceID)
	return nil
}

// handleVerify runs one reconciliation check. Errors are returned so asynq
// retries transient store failures.
func handleVerify(ctx context.Context, t *asynq.Task) error {
	var req reconcile.CheckRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		log.Printf("TASKQUEUE: bad verification payload: %v", err)
		return err
	}
	if reconciler == nil {
		return fmt.Errorf("reconciler not initialized")
	}
	return reconciler.RunCheck(ctx, req)
}
