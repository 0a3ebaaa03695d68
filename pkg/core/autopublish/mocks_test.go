package autopublish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jakechorley/volunteer-hours/pkg/core/model"
	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// memStore implements db.Database in memory with the same publish rules as the postgres store
type memStore struct {
	mu            sync.Mutex
	signups       []db.EligibleSignup
	published     map[string]map[string]bool
	certified     map[string]bool
	certificates  []db.Certificate
	failures      map[SessionKey]string
	notifications []db.Notification
	locked        bool

	scanErr       error
	publishErrFor map[string]error // keyed by project ID
	failureErr    error
	notifyErrFor  map[string]error // keyed by user ID
	publishCalls  int
}

func newMemStore(signups ...db.EligibleSignup) *memStore {
	return &memStore{
		signups:       signups,
		published:     make(map[string]map[string]bool),
		certified:     make(map[string]bool),
		failures:      make(map[SessionKey]string),
		publishErrFor: make(map[string]error),
		notifyErrFor:  make(map[string]error),
	}
}

func (m *memStore) GetSignupsCheckedOutBetween(ctx context.Context, from, to time.Time, statuses []model.SignupStatus) ([]db.EligibleSignup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}

	var rows []db.EligibleSignup
	for _, es := range m.signups {
		co := es.Signup.CheckOutTime
		if co == nil || co.Before(from) || co.After(to) || !hasStatus(statuses, es.Signup.Status) {
			continue
		}
		// The published map is read from the project row, not the fixture
		row := es
		row.Project.Published = make(map[string]bool)
		for slot, ok := range es.Project.Published {
			row.Project.Published[slot] = ok
		}
		for slot, ok := range m.published[es.Project.ID] {
			row.Project.Published[slot] = ok
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func hasStatus(statuses []model.SignupStatus, s model.SignupStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func (m *memStore) PublishSession(ctx context.Context, req db.PublishRequest) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishCalls++

	if err := m.publishErrFor[req.ProjectID]; err != nil {
		return nil, err
	}
	if m.published[req.ProjectID][req.ScheduleID] {
		return nil, db.ErrSessionAlreadyPublished
	}
	for _, c := range req.Certificates {
		if m.certified[c.SignupID] {
			return nil, db.ErrSignupAlreadyCertified
		}
	}

	ids := make([]string, 0, len(req.Certificates))
	for _, c := range req.Certificates {
		m.certified[c.SignupID] = true
		m.certificates = append(m.certificates, c)
		ids = append(ids, c.ID)
	}
	if m.published[req.ProjectID] == nil {
		m.published[req.ProjectID] = make(map[string]bool)
	}
	m.published[req.ProjectID][req.ScheduleID] = true
	delete(m.failures, SessionKey{ProjectID: req.ProjectID, ScheduleID: req.ScheduleID})
	return ids, nil
}

func (m *memStore) RecordPublishFailure(ctx context.Context, projectID, scheduleID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failureErr != nil {
		return m.failureErr
	}
	m.failures[SessionKey{ProjectID: projectID, ScheduleID: scheduleID}] = reason
	return nil
}

func (m *memStore) InsertNotification(ctx context.Context, n db.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.notifyErrFor[n.UserID]; err != nil {
		return err
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memStore) TryRunLock(ctx context.Context) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return nil, false, nil
	}
	m.locked = true
	return func() {
		m.mu.Lock()
		m.locked = false
		m.mu.Unlock()
	}, true, nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) certificatesFor(projectID string) []db.Certificate {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Certificate
	for _, c := range m.certificates {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out
}

type sentEmail struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// mockEmailSender implements EmailSender for testing
type mockEmailSender struct {
	mu      sync.Mutex
	sent    []sentEmail
	failFor map[string]error // keyed by recipient
}

func (m *mockEmailSender) SendHTMLEmail(from, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[to]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentEmail{From: from, To: to, Subject: subject, HTML: htmlBody})
	return nil
}

func (m *mockEmailSender) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.sent {
		out = append(out, e.To)
	}
	return out
}

// mockNotifier implements CertificateNotifier for testing
type mockNotifier struct {
	calls   [][]db.Certificate
	summary NotifySummary
}

func (m *mockNotifier) NotifyAll(ctx context.Context, certs []db.Certificate) NotifySummary {
	m.calls = append(m.calls, certs)
	return m.summary
}

// mockLocker implements db.RunLocker for testing
type mockLocker struct {
	held     bool
	err      error
	unlocked int
}

func (m *mockLocker) TryRunLock(ctx context.Context) (func(), bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held {
		return nil, false, nil
	}
	return func() { m.unlocked++ }, true, nil
}

var errBoom = errors.New("boom")

var testNow = time.Date(2026, 3, 12, 12, 0, 0, 0, time.UTC)

func testProject(id string) db.Project {
	return db.Project{
		ID:               id,
		Title:            "Project " + id,
		Location:         "Community Hall",
		CreatorID:        "creator-1",
		CreatorName:      "Casey Organizer",
		OrganizationID:   "org-1",
		OrganizationName: "Helping Hands",
		CheckInMethod:    model.CheckInQRCode,
		Status:           model.ProjectStatusCompleted,
		TimeZone:         "UTC",
		Published:        map[string]bool{},
	}
}

// testSignup builds an attended signup checked out 60h before testNow that lasted hours
func testSignup(id string, project db.Project, scheduleID, userID, email string, hours float64) db.EligibleSignup {
	checkOut := testNow.Add(-60 * time.Hour)
	checkIn := checkOut.Add(-time.Duration(hours * float64(time.Hour)))
	name := "Volunteer " + id
	s := db.Signup{
		ID:           id,
		ProjectID:    project.ID,
		ScheduleID:   scheduleID,
		UserID:       userID,
		CheckInTime:  &checkIn,
		CheckOutTime: &checkOut,
		Status:       model.SignupStatusAttended,
	}
	if userID == "" {
		s.AnonymousName = name
		s.AnonymousEmail = email
	}
	return db.EligibleSignup{
		Signup:    s,
		Volunteer: model.Volunteer{UserID: userID, Name: name, Email: email},
		Project:   project,
		SlotLabel: "Slot " + scheduleID,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SiteURL = "https://volunteers.example.org"
	cfg.FromAddress = "noreply@example.org"
	return cfg
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
