package db

import (
	"time"

	"github.com/jakechorley/volunteer-hours/pkg/core/model"
)

// Signup represents a database signup record
type Signup struct {
	ID             string
	ProjectID      string
	ScheduleID     string
	UserID         string // Empty for anonymous signups
	AnonymousName  string
	AnonymousEmail string
	CheckInTime    *time.Time
	CheckOutTime   *time.Time
	Status         model.SignupStatus
}

// Project represents the project metadata joined onto a signup
type Project struct {
	ID                   string
	Title                string
	Location             string
	CreatorID            string
	CreatorName          string
	OrganizationID       string // Empty if the project has no organization
	OrganizationName     string
	OrganizationVerified bool
	CheckInMethod        model.CheckInMethod
	Status               model.ProjectStatus
	TimeZone             string // Empty if not recorded
	Published            map[string]bool
}

// IsPublished reports whether certificates were already issued for the schedule slot
func (p Project) IsPublished(scheduleID string) bool {
	return p.Published[scheduleID]
}

// EligibleSignup is a signup joined with everything needed to certify it
type EligibleSignup struct {
	Signup    Signup
	Volunteer model.Volunteer
	Project   Project
	SlotLabel string // Empty if the slot has no label
}

// Certificate represents a database certificate record.
// Volunteer and project fields are snapshots taken at issue time.
type Certificate struct {
	ID                      string
	ProjectID               string
	SignupID                string
	ScheduleID              string
	UserID                  string // Empty for anonymous volunteers
	VolunteerName           string
	VolunteerEmail          string
	ProjectTitle            string
	ProjectLocation         string
	OrganizationName        string
	CreatorName             string
	IsCertifiedOrganization bool
	EventStart              time.Time
	EventEnd                time.Time
	DurationMinutes         int
	CheckInMethod           model.CheckInMethod
	TimeZone                string
	IssuedAt                time.Time
}

// Notification represents a database in-app notification record
type Notification struct {
	ID            string
	UserID        string
	Type          string
	Title         string
	Body          string
	CertificateID string
	Data          map[string]string
	CreatedAt     time.Time
}

// PublishRequest is the set of certificates issued for one session
type PublishRequest struct {
	ProjectID    string
	ScheduleID   string
	Certificates []Certificate
}
