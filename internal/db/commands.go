package db

import (
	"context"

	"switchfleet/internal/models"
)

// EnqueueCommand persists a pending command for an offline device
func (d *DB) EnqueueCommand(ctx context.Context, cmd *models.QueuedCommand) error {
	return d.pool.QueryRow(ctx,
		`INSERT INTO commands (device_id, command_type, command_value, reason, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		cmd.DeviceID, cmd.Type, cmd.Value, cmd.Reason, models.CommandStatusPending).
		Scan(&cmd.ID, &cmd.CreatedAt)
}

// DrainPending returns all pending commands for a device in creation order
// and flips them to sent in the same transaction, so no command is ever
// delivered twice.
func (d *DB) DrainPending(ctx context.Context, deviceID string) ([]models.QueuedCommand, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, device_id, command_type, command_value, reason, status, created_at
		 FROM commands
		 WHERE device_id = $1 AND status = $2
		 ORDER BY created_at ASC
		 FOR UPDATE`,
		deviceID, models.CommandStatusPending)
	if err != nil {
		return nil, err
	}

	var cmds []models.QueuedCommand
	var ids []int64
	for rows.Next() {
		var c models.QueuedCommand
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.Type, &c.Value, &c.Reason, &c.Status, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		c.Status = models.CommandStatusSent
		cmds = append(cmds, c)
		ids = append(ids, c.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		if _, err := tx.Exec(ctx,
			"UPDATE commands SET status = $1 WHERE id = ANY($2)",
			models.CommandStatusSent, ids); err != nil {
			return nil, err
		}
	}
	return cmds, tx.Commit(ctx)
}

// DeliverPending feeds pending commands for a device, in creation order, to
// the deliver callback and flips to sent only the ones the callback accepted.
// Delivery stops at the first rejection; the remainder stays pending for the
// next drain. Returns how many commands were delivered.
func (d *DB) DeliverPending(ctx context.Context, deviceID string, deliver func(models.QueuedCommand) bool) (int, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, device_id, command_type, command_value, reason, status, created_at
		 FROM commands
		 WHERE device_id = $1 AND status = $2
		 ORDER BY created_at ASC
		 FOR UPDATE`,
		deviceID, models.CommandStatusPending)
	if err != nil {
		return 0, err
	}

	var cmds []models.QueuedCommand
	for rows.Next() {
		var c models.QueuedCommand
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.Type, &c.Value, &c.Reason, &c.Status, &c.CreatedAt); err != nil {
			rows.Close()
			return 0, err
		}
		cmds = append(cmds, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var delivered []int64
	for _, c := range cmds {
		if !deliver(c) {
			break
		}
		delivered = append(delivered, c.ID)
	}

	if len(delivered) > 0 {
		if _, err := tx.Exec(ctx,
			"UPDATE commands SET status = $1 WHERE id = ANY($2)",
			models.CommandStatusSent, delivered); err != nil {
			return 0, err
		}
	}
	return len(delivered), tx.Commit(ctx)
}
