package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"switchfleet/internal/models"
)

// AppendSample records one telemetry sample and refreshes the cache
func (d *DB) AppendSample(ctx context.Context, sample *models.StateSample) error {
	err := d.pool.QueryRow(ctx,
		`INSERT INTO device_states (device_id, switch_state, current_reading, voltage)
		 VALUES ($1, $2, $3, $4) RETURNING id, ts`,
		sample.DeviceID, sample.SwitchState, sample.CurrentReading, sample.Voltage).
		Scan(&sample.ID, &sample.Timestamp)
	if err != nil {
		return err
	}
	if d.cache != nil {
		d.cache.SetLatestSample(ctx, sample)
	}
	return nil
}

// LatestSample returns the most recent sample for a device, nil when the
// device has never reported. Served from the cache when possible.
func (d *DB) LatestSample(ctx context.Context, deviceID string) (*models.StateSample, error) {
	if d.cache != nil {
		if sample, ok := d.cache.GetLatestSample(ctx, deviceID); ok {
			return sample, nil
		}
	}

	var sample models.StateSample
	err := d.pool.QueryRow(ctx,
		`SELECT id, device_id, switch_state, current_reading, voltage, ts
		 FROM device_states WHERE device_id = $1 ORDER BY ts DESC LIMIT 1`, deviceID).
		Scan(&sample.ID, &sample.DeviceID, &sample.SwitchState, &sample.CurrentReading,
			&sample.Voltage, &sample.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		d.cache.SetLatestSample(ctx, &sample)
	}
	return &sample, nil
}

// ListSamples returns samples within the trailing hours window, newest first
func (d *DB) ListSamples(ctx context.Context, deviceID string, hours, limit int) ([]models.StateSample, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, device_id, switch_state, current_reading, voltage, ts
		 FROM device_states
		 WHERE device_id = $1 AND ts >= NOW() - $2::interval
		 ORDER BY ts DESC LIMIT $3`,
		deviceID, fmt.Sprintf("%d hours", hours), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.StateSample
	for rows.Next() {
		var s models.StateSample
		if err := rows.Scan(&s.ID, &s.DeviceID, &s.SwitchState, &s.CurrentReading, &s.Voltage, &s.Timestamp); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// AppendCorrection logs one reconciliation correction
func (d *DB) AppendCorrection(ctx context.Context, rec *models.CorrectionRecord) error {
	return d.pool.QueryRow(ctx,
		`INSERT INTO corrections (device_id, expected, actual, schedule_id, schedule_name, corrected_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rec.DeviceID, rec.Expected, rec.Actual, rec.ScheduleID, rec.ScheduleName, rec.CorrectedAt).
		Scan(&rec.ID)
}

// ListCorrections returns the newest corrections for a device
func (d *DB) ListCorrections(ctx context.Context, deviceID string, limit int) ([]models.CorrectionRecord, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, device_id, expected, actual, schedule_id, schedule_name, corrected_at
		 FROM corrections WHERE device_id = $1 ORDER BY corrected_at DESC LIMIT $2`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []models.CorrectionRecord
	for rows.Next() {
		var r models.CorrectionRecord
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Expected, &r.Actual, &r.ScheduleID, &r.ScheduleName, &r.CorrectedAt); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
