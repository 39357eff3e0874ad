package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"switchfleet/internal/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// InsertDevice registers a new device for a user
func (d *DB) InsertDevice(ctx context.Context, id, name, model string, userID int) error {
	_, err := d.pool.Exec(ctx,
		"INSERT INTO devices (id, name, model, user_id) VALUES ($1, $2, $3, $4)",
		id, name, model, userID)
	return err
}

// GetDevice fetches a device by id
func (d *DB) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	var dev models.Device
	err := d.pool.QueryRow(ctx,
		"SELECT id, name, model, user_id, is_online, last_seen, created_at FROM devices WHERE id = $1", id).
		Scan(&dev.ID, &dev.Name, &dev.Model, &dev.UserID, &dev.IsOnline, &dev.LastSeen, &dev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// GetOwnedDevice fetches a device only if userID owns it or isAdmin
func (d *DB) GetOwnedDevice(ctx context.Context, id string, userID int, isAdmin bool) (*models.Device, error) {
	dev, err := d.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && dev.UserID != userID {
		return nil, ErrNotFound
	}
	return dev, nil
}

const latestSampleLateral = `
	LEFT JOIN LATERAL (
		SELECT switch_state, current_reading, voltage
		FROM device_states
		WHERE device_id = d.id
		ORDER BY ts DESC LIMIT 1
	) ds ON true`

// ListDevicesByUser fetches the user's devices joined with the latest sample
func (d *DB) ListDevicesByUser(ctx context.Context, userID int) ([]models.DeviceWithState, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT d.id, d.name, d.model, d.user_id, d.is_online, d.last_seen, d.created_at,
		        ds.switch_state, ds.current_reading, ds.voltage
		 FROM devices d`+latestSampleLateral+`
		 WHERE d.user_id = $1
		 ORDER BY d.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.DeviceWithState
	for rows.Next() {
		var dev models.DeviceWithState
		if err := rows.Scan(&dev.ID, &dev.Name, &dev.Model, &dev.UserID, &dev.IsOnline, &dev.LastSeen,
			&dev.CreatedAt, &dev.SwitchState, &dev.CurrentReading, &dev.Voltage); err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

// ListAllDevices fetches every device with owner username and latest sample,
// for the admin panel
func (d *DB) ListAllDevices(ctx context.Context) ([]models.DeviceWithState, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT d.id, d.name, d.model, d.user_id, d.is_online, d.last_seen, d.created_at,
		        u.username, ds.switch_state, ds.current_reading, ds.voltage
		 FROM devices d
		 JOIN users u ON d.user_id = u.id`+latestSampleLateral+`
		 ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.DeviceWithState
	for rows.Next() {
		var dev models.DeviceWithState
		if err := rows.Scan(&dev.ID, &dev.Name, &dev.Model, &dev.UserID, &dev.IsOnline, &dev.LastSeen,
			&dev.CreatedAt, &dev.Username, &dev.SwitchState, &dev.CurrentReading, &dev.Voltage); err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

// DeleteDevice removes a device; schedules and queued commands cascade
func (d *DB) DeleteDevice(ctx context.Context, id string) error {
	_, err := d.pool.Exec(ctx, "DELETE FROM devices WHERE id = $1", id)
	if err == nil && d.cache != nil {
		d.cache.Invalidate(ctx, id)
	}
	return err
}

// MarkOnline flags the device online and refreshes last-seen
func (d *DB) MarkOnline(ctx context.Context, id string) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE devices SET is_online = true, last_seen = NOW() WHERE id = $1", id)
	return err
}

// MarkOffline flags the device offline
func (d *DB) MarkOffline(ctx context.Context, id string) error {
	_, err := d.pool.Exec(ctx, "UPDATE devices SET is_online = false WHERE id = $1", id)
	return err
}

// MarkStaleOffline flags every device whose last-seen is older than olderThan
// and is still online, returning the affected ids. Devices already offline are
// untouched, which keeps the presence sweep idempotent.
func (d *DB) MarkStaleOffline(ctx context.Context, olderThan time.Duration) ([]string, error) {
	rows, err := d.pool.Query(ctx,
		"UPDATE devices SET is_online = false WHERE last_seen < NOW() - $1::interval AND is_online = true RETURNING id",
		olderThan.String())
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
