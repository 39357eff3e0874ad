package db

import (
	"context"

	"switchfleet/internal/models"
)

// UpsertSubscription registers or refreshes a user's web-push endpoint
func (d *DB) UpsertSubscription(ctx context.Context, sub *models.PushSubscription) error {
	return d.pool.QueryRow(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (endpoint) DO UPDATE SET user_id = $1, p256dh = $3, auth = $4
		 RETURNING id`,
		sub.UserID, sub.Endpoint, sub.P256DH, sub.Auth).
		Scan(&sub.ID)
}

// DeleteSubscription removes a web-push endpoint
func (d *DB) DeleteSubscription(ctx context.Context, endpoint string) error {
	_, err := d.pool.Exec(ctx, "DELETE FROM push_subscriptions WHERE endpoint = $1", endpoint)
	return err
}

// SubscriptionsForDevice returns the device owner's push subscriptions
func (d *DB) SubscriptionsForDevice(ctx context.Context, deviceID string) ([]models.PushSubscription, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT s.id, s.user_id, s.endpoint, s.p256dh, s.auth
		 FROM push_subscriptions s
		 JOIN devices d ON d.user_id = s.user_id
		 WHERE d.id = $1`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var s models.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256DH, &s.Auth); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
