package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jakechorley/volunteer-hours/pkg/core/model"
	"github.com/jakechorley/volunteer-hours/pkg/db"
)

const queryCheckedOutBetween = `
	SELECT s.id::text, s.project_id::text, s.schedule_id, s.user_id::text,
	       s.anonymous_name, s.anonymous_email, s.check_in_time, s.check_out_time, s.status,
	       u.full_name, u.email,
	       p.title, p.location, p.creator_id::text, c.full_name,
	       p.organization_id::text, o.name, COALESCE(o.verified, FALSE),
	       p.check_in_method, p.status, p.time_zone, p.published,
	       sl.label
	FROM signups s
	JOIN projects p ON p.id = s.project_id
	LEFT JOIN profiles u ON u.id = s.user_id
	LEFT JOIN profiles c ON c.id = p.creator_id
	LEFT JOIN organizations o ON o.id = p.organization_id
	LEFT JOIN project_slots sl ON sl.project_id = s.project_id AND sl.id = s.schedule_id
	WHERE s.check_out_time >= $1
	  AND s.check_out_time <= $2
	  AND s.check_in_time IS NOT NULL
	  AND s.status = ANY($3)
	ORDER BY s.project_id, s.schedule_id, s.check_in_time, s.id
`

// GetSignupsCheckedOutBetween returns signups whose check-out falls in [from, to] with one of the
// given statuses, joined with their volunteer profile and project metadata
func (d *DB) GetSignupsCheckedOutBetween(ctx context.Context, from, to time.Time, statuses []model.SignupStatus) ([]db.EligibleSignup, error) {
	statusArgs := make([]string, len(statuses))
	for i, s := range statuses {
		statusArgs[i] = string(s)
	}

	rows, err := d.pool.Query(ctx, queryCheckedOutBetween, from.UTC(), to.UTC(), statusArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to query signups: %w", err)
	}
	defer rows.Close()

	var result []db.EligibleSignup
	for rows.Next() {
		var (
			es                                   db.EligibleSignup
			userID, anonName, anonEmail          *string
			userName, userEmail                  *string
			creatorID, creatorName               *string
			orgID, orgName, timeZone, slotLabel  *string
			status, checkInMethod, projectStatus string
			published                            []byte
		)
		err := rows.Scan(
			&es.Signup.ID,
			&es.Signup.ProjectID,
			&es.Signup.ScheduleID,
			&userID,
			&anonName,
			&anonEmail,
			&es.Signup.CheckInTime,
			&es.Signup.CheckOutTime,
			&status,
			&userName,
			&userEmail,
			&es.Project.Title,
			&es.Project.Location,
			&creatorID,
			&creatorName,
			&orgID,
			&orgName,
			&es.Project.OrganizationVerified,
			&checkInMethod,
			&projectStatus,
			&timeZone,
			&published,
			&slotLabel,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signup: %w", err)
		}

		es.Signup.UserID = deref(userID)
		es.Signup.AnonymousName = deref(anonName)
		es.Signup.AnonymousEmail = deref(anonEmail)
		es.Signup.Status = model.SignupStatus(status)

		es.Project.ID = es.Signup.ProjectID
		es.Project.CreatorID = deref(creatorID)
		es.Project.CreatorName = deref(creatorName)
		es.Project.OrganizationID = deref(orgID)
		es.Project.OrganizationName = deref(orgName)
		es.Project.CheckInMethod = model.CheckInMethod(checkInMethod)
		es.Project.Status = model.ProjectStatus(projectStatus)
		es.Project.TimeZone = deref(timeZone)
		es.Project.Published, err = decodePublished(published)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", es.Project.ID, err)
		}

		es.Volunteer = volunteerFor(es.Signup, deref(userName), deref(userEmail))
		es.SlotLabel = deref(slotLabel)

		result = append(result, es)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signups: %w", err)
	}

	return result, nil
}

// volunteerFor picks the registered profile or the anonymous pair, whichever the signup carries
func volunteerFor(s db.Signup, profileName, profileEmail string) model.Volunteer {
	if s.UserID != "" {
		return model.Volunteer{UserID: s.UserID, Name: profileName, Email: profileEmail}
	}
	return model.Volunteer{Name: s.AnonymousName, Email: s.AnonymousEmail}
}

// decodePublished reads the published map. Older rows stored slot IDs with non-boolean values,
// any truthy value counts as published.
func decodePublished(raw []byte) (map[string]bool, error) {
	published := make(map[string]bool)
	if len(raw) == 0 {
		return published, nil
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to decode published map: %w", err)
	}
	for slot, v := range values {
		switch val := v.(type) {
		case bool:
			published[slot] = val
		case nil:
		default:
			published[slot] = true
		}
	}
	return published, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
