package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// InsertNotification inserts an in-app notification for a registered user
func (d *DB) InsertNotification(ctx context.Context, n db.Notification) error {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, certificate_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`, n.ID, n.UserID, n.Type, n.Title, n.Body, nullable(n.CertificateID), string(payload), n.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}
