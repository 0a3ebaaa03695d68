package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/volunteer-hours/pkg/core/model"
	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// startPostgres runs a throwaway postgres container and returns a migrated DB.
// Set VH_INTEGRATION=1 with a reachable docker daemon to run these tests.
func startPostgres(t *testing.T) (*DB, string) {
	t.Helper()
	if testing.Short() || os.Getenv("VH_INTEGRATION") == "" {
		t.Skip("set VH_INTEGRATION=1 to run postgres integration tests")
	}

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "could not construct docker pool")
	require.NoError(t, pool.Client.Ping(), "could not connect to docker")
	pool.MaxWait = 2 * time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=volunteer",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=volunteer_hours",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "could not start postgres")
	require.NoError(t, resource.Expire(300))
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("could not purge postgres container: %v", err)
		}
	})

	connString := fmt.Sprintf("postgres://volunteer:secret@%s/volunteer_hours?sslmode=disable", resource.GetHostPort("5432/tcp"))

	ctx := context.Background()
	var database *DB
	err = pool.Retry(func() error {
		var err error
		database, err = NewDB(ctx, connString)
		return err
	})
	require.NoError(t, err, "postgres never became ready")
	t.Cleanup(database.Close)

	applied, err := database.RunMigrations(ctx)
	require.NoError(t, err)
	require.Contains(t, applied, "001_init.sql")

	return database, connString
}

type fixture struct {
	projectID   string
	volunteerID string
	creatorID   string
	orgID       string
	signupIDs   map[string]string
}

func seed(t *testing.T, d *DB, checkOut time.Time) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{
		projectID:   uuid.NewString(),
		volunteerID: uuid.NewString(),
		creatorID:   uuid.NewString(),
		orgID:       uuid.NewString(),
		signupIDs:   map[string]string{},
	}

	exec := func(sql string, args ...any) {
		_, err := d.pool.Exec(ctx, sql, args...)
		require.NoError(t, err, sql)
	}

	exec(`INSERT INTO profiles (id, full_name, email) VALUES ($1, 'Alex Volunteer', 'alex@example.org'), ($2, 'Casey Organizer', 'casey@example.org')`,
		f.volunteerID, f.creatorID)
	exec(`INSERT INTO organizations (id, name, verified) VALUES ($1, 'Helping Hands', TRUE)`, f.orgID)
	exec(`INSERT INTO projects (id, title, location, creator_id, organization_id, check_in_method, status, time_zone, published)
		VALUES ($1, 'Park Cleanup', 'Riverside Park', $2, $3, 'qr-code', 'completed', 'America/New_York', '{"slot-0": "2025-01-01T00:00:00Z"}')`,
		f.projectID, f.creatorID, f.orgID)
	exec(`INSERT INTO project_slots (project_id, id, label) VALUES ($1, 'slot-1', 'Morning shift'), ($1, 'slot-2', NULL)`, f.projectID)

	checkIn := checkOut.Add(-4 * time.Hour)
	addSignup := func(key, slot, status string, userID *string, anonName, anonEmail *string, out time.Time) {
		id := uuid.NewString()
		f.signupIDs[key] = id
		exec(`INSERT INTO signups (id, project_id, schedule_id, user_id, anonymous_name, anonymous_email, check_in_time, check_out_time, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, f.projectID, slot, userID, anonName, anonEmail, checkIn, out, status)
	}

	anonName, anonEmail := "Walk In", "walkin@example.org"
	addSignup("registered", "slot-1", "attended", &f.volunteerID, nil, nil, checkOut)
	addSignup("anonymous", "slot-1", "approved", nil, &anonName, &anonEmail, checkOut)
	addSignup("rejected", "slot-1", "rejected", &f.volunteerID, nil, nil, checkOut)
	addSignup("late", "slot-2", "attended", &f.volunteerID, nil, nil, checkOut.Add(48*time.Hour))

	return f
}

func certificateFor(f fixture, key, slot, name string, checkOut time.Time) db.Certificate {
	return db.Certificate{
		ID:              uuid.NewString(),
		ProjectID:       f.projectID,
		SignupID:        f.signupIDs[key],
		ScheduleID:      slot,
		VolunteerName:   name,
		ProjectTitle:    "Park Cleanup",
		EventStart:      checkOut.Add(-4 * time.Hour),
		EventEnd:        checkOut,
		DurationMinutes: 240,
		CheckInMethod:   model.CheckInQRCode,
		TimeZone:        "America/New_York",
		IssuedAt:        checkOut.Add(60 * time.Hour),
	}
}

func TestPostgresIntegration(t *testing.T) {
	d, connString := startPostgres(t)
	ctx := context.Background()

	checkOut := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	f := seed(t, d, checkOut)

	t.Run("migrations are idempotent", func(t *testing.T) {
		applied, err := d.RunMigrations(ctx)
		require.NoError(t, err)
		assert.Empty(t, applied)
	})

	t.Run("scans signups in window with joined metadata", func(t *testing.T) {
		got, err := d.GetSignupsCheckedOutBetween(ctx, checkOut.Add(-time.Hour), checkOut.Add(time.Hour), model.AttendanceStatuses())
		require.NoError(t, err)
		require.Len(t, got, 2)

		byID := map[string]db.EligibleSignup{}
		for _, es := range got {
			byID[es.Signup.ID] = es
		}

		reg := byID[f.signupIDs["registered"]]
		assert.Equal(t, f.volunteerID, reg.Volunteer.UserID)
		assert.Equal(t, "Alex Volunteer", reg.Volunteer.Name)
		assert.Equal(t, "alex@example.org", reg.Volunteer.Email)
		assert.Equal(t, "Park Cleanup", reg.Project.Title)
		assert.Equal(t, "Casey Organizer", reg.Project.CreatorName)
		assert.Equal(t, "Helping Hands", reg.Project.OrganizationName)
		assert.True(t, reg.Project.OrganizationVerified)
		assert.Equal(t, model.CheckInQRCode, reg.Project.CheckInMethod)
		assert.Equal(t, model.ProjectStatusCompleted, reg.Project.Status)
		assert.Equal(t, "America/New_York", reg.Project.TimeZone)
		assert.True(t, reg.Project.IsPublished("slot-0"))
		assert.False(t, reg.Project.IsPublished("slot-1"))
		assert.Equal(t, "Morning shift", reg.SlotLabel)
		require.NotNil(t, reg.Signup.CheckOutTime)
		assert.True(t, reg.Signup.CheckOutTime.Equal(checkOut))

		anon := byID[f.signupIDs["anonymous"]]
		assert.False(t, anon.Volunteer.IsRegistered())
		assert.Equal(t, "Walk In", anon.Volunteer.Name)
		assert.Equal(t, "walkin@example.org", anon.Volunteer.Email)
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		got, err := d.GetSignupsCheckedOutBetween(ctx, checkOut, checkOut, model.AttendanceStatuses())
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("records and clears publish failures", func(t *testing.T) {
		require.NoError(t, d.RecordPublishFailure(ctx, f.projectID, "slot-1", "no valid hours to publish", checkOut))

		var reason string
		err := d.pool.QueryRow(ctx, `SELECT publish_failures -> 'slot-1' ->> 'reason' FROM projects WHERE id = $1`, f.projectID).Scan(&reason)
		require.NoError(t, err)
		assert.Equal(t, "no valid hours to publish", reason)
	})

	t.Run("publishes a session atomically", func(t *testing.T) {
		certs := []db.Certificate{
			certificateFor(f, "registered", "slot-1", "Alex Volunteer", checkOut),
			certificateFor(f, "anonymous", "slot-1", "Walk In", checkOut),
		}
		certs[0].UserID = f.volunteerID

		ids, err := d.PublishSession(ctx, db.PublishRequest{ProjectID: f.projectID, ScheduleID: "slot-1", Certificates: certs})
		require.NoError(t, err)
		assert.Equal(t, []string{certs[0].ID, certs[1].ID}, ids)

		var count int
		require.NoError(t, d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM certificates WHERE project_id = $1`, f.projectID).Scan(&count))
		assert.Equal(t, 2, count)

		var published, failureCleared bool
		err = d.pool.QueryRow(ctx, `
			SELECT published -> 'slot-1' = 'true'::jsonb, NOT (publish_failures ? 'slot-1')
			FROM projects WHERE id = $1`, f.projectID).Scan(&published, &failureCleared)
		require.NoError(t, err)
		assert.True(t, published)
		assert.True(t, failureCleared)
	})

	t.Run("rejects republishing a session", func(t *testing.T) {
		certs := []db.Certificate{certificateFor(f, "rejected", "slot-1", "Alex Volunteer", checkOut)}
		_, err := d.PublishSession(ctx, db.PublishRequest{ProjectID: f.projectID, ScheduleID: "slot-1", Certificates: certs})
		assert.ErrorIs(t, err, db.ErrSessionAlreadyPublished)
	})

	t.Run("duplicate signup rolls back the whole session", func(t *testing.T) {
		certs := []db.Certificate{
			certificateFor(f, "late", "slot-2", "Alex Volunteer", checkOut),
			certificateFor(f, "registered", "slot-2", "Alex Volunteer", checkOut),
		}
		_, err := d.PublishSession(ctx, db.PublishRequest{ProjectID: f.projectID, ScheduleID: "slot-2", Certificates: certs})
		require.Error(t, err)
		assert.True(t, errors.Is(err, db.ErrSignupAlreadyCertified))

		var count int
		require.NoError(t, d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM certificates WHERE signup_id = $1`, f.signupIDs["late"]).Scan(&count))
		assert.Zero(t, count)

		var published bool
		require.NoError(t, d.pool.QueryRow(ctx, `SELECT published ? 'slot-2' FROM projects WHERE id = $1`, f.projectID).Scan(&published))
		assert.False(t, published)
	})

	t.Run("unknown project", func(t *testing.T) {
		certs := []db.Certificate{certificateFor(f, "late", "slot-2", "Alex Volunteer", checkOut)}
		_, err := d.PublishSession(ctx, db.PublishRequest{ProjectID: uuid.NewString(), ScheduleID: "slot-2", Certificates: certs})
		assert.ErrorIs(t, err, db.ErrProjectNotFound)
	})

	t.Run("empty publish is rejected", func(t *testing.T) {
		_, err := d.PublishSession(ctx, db.PublishRequest{ProjectID: f.projectID, ScheduleID: "slot-2"})
		assert.Error(t, err)
	})

	t.Run("inserts notifications", func(t *testing.T) {
		var certID string
		require.NoError(t, d.pool.QueryRow(ctx, `SELECT id::text FROM certificates WHERE signup_id = $1`, f.signupIDs["registered"]).Scan(&certID))

		err := d.InsertNotification(ctx, db.Notification{
			ID:            uuid.NewString(),
			UserID:        f.volunteerID,
			Type:          "certificate_published",
			Title:         "Your volunteer certificate is ready",
			Body:          "Park Cleanup",
			CertificateID: certID,
			Data:          map[string]string{"projectId": f.projectID},
			CreatedAt:     checkOut,
		})
		require.NoError(t, err)

		var projectID string
		require.NoError(t, d.pool.QueryRow(ctx, `SELECT data ->> 'projectId' FROM notifications WHERE user_id = $1`, f.volunteerID).Scan(&projectID))
		assert.Equal(t, f.projectID, projectID)
	})

	t.Run("run lock is exclusive across connections", func(t *testing.T) {
		other, err := NewDB(ctx, connString)
		require.NoError(t, err)
		defer other.Close()

		unlock, acquired, err := d.TryRunLock(ctx)
		require.NoError(t, err)
		require.True(t, acquired)

		_, acquired, err = other.TryRunLock(ctx)
		require.NoError(t, err)
		assert.False(t, acquired)

		unlock()

		unlockOther, acquired, err := other.TryRunLock(ctx)
		require.NoError(t, err)
		assert.True(t, acquired)
		unlockOther()
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, d.Ping(ctx))
	})
}
