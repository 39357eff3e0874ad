package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"switchfleet/internal/models"
)

const scheduleColumns = "id, device_id, name, hour, minute, action, days, enabled, repeat_type, created_at, updated_at"

func scanSchedule(row pgx.Row) (models.Schedule, error) {
	var s models.Schedule
	err := row.Scan(&s.ID, &s.DeviceID, &s.Name, &s.Hour, &s.Minute, &s.Action,
		&s.Days, &s.Enabled, &s.RepeatType, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (d *DB) querySchedules(ctx context.Context, sql string, args ...interface{}) ([]models.Schedule, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// ListSchedulesByDevice fetches all schedules for a device. The fixed
// ordering makes the evaluator's last-wins tie-break deterministic.
func (d *DB) ListSchedulesByDevice(ctx context.Context, deviceID string) ([]models.Schedule, error) {
	return d.querySchedules(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE device_id = $1 ORDER BY hour, minute, id", deviceID)
}

// ListEnabledSchedules fetches only enabled schedules for a device
func (d *DB) ListEnabledSchedules(ctx context.Context, deviceID string) ([]models.Schedule, error) {
	return d.querySchedules(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE device_id = $1 AND enabled = true ORDER BY hour, minute, id", deviceID)
}

// ListDevicesWithSchedules returns every device id carrying at least one
// enabled schedule; used to arm reconciliation at startup
func (d *DB) ListDevicesWithSchedules(ctx context.Context) ([]string, error) {
	rows, err := d.pool.Query(ctx, "SELECT DISTINCT device_id FROM schedules WHERE enabled = true")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetSchedule fetches one schedule scoped to its device
func (d *DB) GetSchedule(ctx context.Context, scheduleID int, deviceID string) (*models.Schedule, error) {
	s, err := scanSchedule(d.pool.QueryRow(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE id = $1 AND device_id = $2", scheduleID, deviceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertSchedule creates a schedule and fills in the generated fields
func (d *DB) InsertSchedule(ctx context.Context, s *models.Schedule) error {
	return d.pool.QueryRow(ctx,
		`INSERT INTO schedules (device_id, name, hour, minute, action, days, enabled, repeat_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		s.DeviceID, s.Name, s.Hour, s.Minute, s.Action, s.Days, s.Enabled, s.RepeatType).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// UpdateSchedule overwrites a schedule's mutable fields
func (d *DB) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	err := d.pool.QueryRow(ctx,
		`UPDATE schedules
		 SET name = $1, hour = $2, minute = $3, action = $4, days = $5, enabled = $6,
		     repeat_type = $7, updated_at = NOW()
		 WHERE id = $8 AND device_id = $9
		 RETURNING updated_at`,
		s.Name, s.Hour, s.Minute, s.Action, s.Days, s.Enabled, s.RepeatType, s.ID, s.DeviceID).
		Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// DeleteSchedule removes a schedule scoped to its device
func (d *DB) DeleteSchedule(ctx context.Context, scheduleID int, deviceID string) error {
	tag, err := d.pool.Exec(ctx,
		"DELETE FROM schedules WHERE id = $1 AND device_id = $2", scheduleID, deviceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
