package db

import (
	"context"
	"errors"
	"time"

	"github.com/jakechorley/volunteer-hours/pkg/core/model"
)

var (
	// ErrSessionAlreadyPublished is returned when the slot is already in the project's published map
	ErrSessionAlreadyPublished = errors.New("session already published")
	// ErrSignupAlreadyCertified is returned when a certificate already exists for one of the signups
	ErrSignupAlreadyCertified = errors.New("signup already has a certificate")
	// ErrProjectNotFound is returned when a publish targets a missing project
	ErrProjectNotFound = errors.New("project not found")
)

// SignupStore defines the read side used to find completed signups
type SignupStore interface {
	GetSignupsCheckedOutBetween(ctx context.Context, from, to time.Time, statuses []model.SignupStatus) ([]EligibleSignup, error)
}

// PublishStore defines the write side used when issuing certificates.
// PublishSession must insert the certificates and mark the slot published atomically.
type PublishStore interface {
	PublishSession(ctx context.Context, req PublishRequest) ([]string, error)
	RecordPublishFailure(ctx context.Context, projectID, scheduleID, reason string, at time.Time) error
}

// NotificationStore defines in-app notification writes
type NotificationStore interface {
	InsertNotification(ctx context.Context, n Notification) error
}

// RunLocker serialises job runs across processes
type RunLocker interface {
	TryRunLock(ctx context.Context) (unlock func(), acquired bool, err error)
}

// Database defines the interface for all database operations.
// postgres.DB implements this interface.
type Database interface {
	SignupStore
	PublishStore
	NotificationStore
	RunLocker
	Ping(ctx context.Context) error
}
