package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jakechorley/volunteer-hours/pkg/db"
)

const queryInsertCertificate = `
	INSERT INTO certificates (
		id, project_id, signup_id, schedule_id, user_id, volunteer_name, volunteer_email,
		project_title, project_location, organization_name, creator_name, is_certified_organization,
		event_start, event_end, duration_minutes, check_in_method, time_zone, issued_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	RETURNING id::text
`

// PublishSession inserts the session's certificates and adds the slot to the project's published
// map in a single transaction. Nothing is written unless both succeed.
func (d *DB) PublishSession(ctx context.Context, req db.PublishRequest) ([]string, error) {
	if len(req.Certificates) == 0 {
		return nil, fmt.Errorf("no certificates to publish for session %s", req.ScheduleID)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the project row so a concurrent run cannot publish the same slot
	var alreadyPublished bool
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(published -> $2::text NOT IN ('false'::jsonb, 'null'::jsonb), FALSE)
		FROM projects WHERE id = $1
		FOR UPDATE
	`, req.ProjectID, req.ScheduleID).Scan(&alreadyPublished)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", db.ErrProjectNotFound, req.ProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock project: %w", err)
	}
	if alreadyPublished {
		return nil, db.ErrSessionAlreadyPublished
	}

	ids, err := insertCertificates(ctx, tx, req.Certificates)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE projects
		SET published = published || jsonb_build_object($2::text, true),
		    publish_failures = publish_failures - $2::text
		WHERE id = $1
	`, req.ProjectID, req.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to update published map: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ids, nil
}

func insertCertificates(ctx context.Context, tx pgx.Tx, certs []db.Certificate) ([]string, error) {
	batch := &pgx.Batch{}
	for _, c := range certs {
		batch.Queue(queryInsertCertificate,
			c.ID,
			c.ProjectID,
			c.SignupID,
			c.ScheduleID,
			nullable(c.UserID),
			c.VolunteerName,
			nullable(c.VolunteerEmail),
			c.ProjectTitle,
			c.ProjectLocation,
			nullable(c.OrganizationName),
			nullable(c.CreatorName),
			c.IsCertifiedOrganization,
			c.EventStart.UTC(),
			c.EventEnd.UTC(),
			c.DurationMinutes,
			string(c.CheckInMethod),
			nullable(c.TimeZone),
			c.IssuedAt.UTC(),
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	ids := make([]string, 0, len(certs))
	for _, c := range certs {
		var id string
		if err := results.QueryRow().Scan(&id); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: signup %s", db.ErrSignupAlreadyCertified, c.SignupID)
			}
			return nil, fmt.Errorf("failed to insert certificate for signup %s: %w", c.SignupID, err)
		}
		ids = append(ids, id)
	}

	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("failed to close certificate batch: %w", err)
	}
	return ids, nil
}

// RecordPublishFailure marks a session whose signups could not be certified.
// The marker is cleared by a later successful PublishSession.
func (d *DB) RecordPublishFailure(ctx context.Context, projectID, scheduleID, reason string, at time.Time) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE projects
		SET publish_failures = publish_failures || jsonb_build_object(
			$2::text, jsonb_build_object('reason', $3::text, 'at', $4::timestamptz)
		)
		WHERE id = $1
	`, projectID, scheduleID, reason, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record publish failure: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
