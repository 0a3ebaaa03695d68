package model

// SignupStatus is the attendance status of a volunteer signup
type SignupStatus string

const (
	SignupStatusPending   SignupStatus = "pending"
	SignupStatusApproved  SignupStatus = "approved"
	SignupStatusAttended  SignupStatus = "attended"
	SignupStatusRejected  SignupStatus = "rejected"
	SignupStatusCancelled SignupStatus = "cancelled"
)

// CountsAsAttendance reports whether the status means the volunteer turned up
func (s SignupStatus) CountsAsAttendance() bool {
	return s == SignupStatusAttended || s == SignupStatusApproved
}

// AttendanceStatuses returns the statuses eligible for certificates
func AttendanceStatuses() []SignupStatus {
	return []SignupStatus{SignupStatusAttended, SignupStatusApproved}
}

// CheckInMethod is how volunteers record attendance for a project
type CheckInMethod string

const (
	CheckInManual     CheckInMethod = "manual"
	CheckInQRCode     CheckInMethod = "qr-code"
	CheckInAuto       CheckInMethod = "auto"
	CheckInSignupOnly CheckInMethod = "signup-only"
)

// SupportsAutoPublish reports whether hours recorded with this method can be published
// automatically. Auto and signup-only projects never have reliable check-out times.
func (m CheckInMethod) SupportsAutoPublish() bool {
	return m == CheckInManual || m == CheckInQRCode
}

func (m CheckInMethod) IsValid() bool {
	switch m {
	case CheckInManual, CheckInQRCode, CheckInAuto, CheckInSignupOnly:
		return true
	}
	return false
}

// ProjectStatus is the lifecycle status of a project
type ProjectStatus string

const (
	ProjectStatusUpcoming  ProjectStatus = "upcoming"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// Volunteer identifies the person behind a signup.
// Exactly one of UserID or the anonymous name/email pair is populated.
type Volunteer struct {
	UserID string // Empty string for anonymous signups
	Name   string
	Email  string // Empty string if unknown
}

// IsRegistered reports whether the volunteer has an account
func (v Volunteer) IsRegistered() bool {
	return v.UserID != ""
}
