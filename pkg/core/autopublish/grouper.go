package autopublish

import (
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/pkg/core/model"
	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// SessionKey identifies a session by project and schedule slot
type SessionKey struct {
	ProjectID  string
	ScheduleID string
}

// Session is the set of eligible signups sharing one project and schedule slot.
// Sessions only exist for the duration of a run.
type Session struct {
	Key     SessionKey
	Name    string
	Project db.Project
	Signups []db.EligibleSignup
}

// GroupSessions partitions signups into sessions in first-seen order, dropping sessions that are
// already published, use a check-in method without reliable check-out data, or belong to a
// cancelled project
func GroupSessions(signups []db.EligibleSignup, logger *zap.Logger) []Session {
	index := make(map[SessionKey]int)
	var sessions []Session

	for _, es := range signups {
		key := SessionKey{ProjectID: es.Signup.ProjectID, ScheduleID: es.Signup.ScheduleID}
		i, ok := index[key]
		if !ok {
			name := es.SlotLabel
			if name == "" {
				name = key.ScheduleID
			}
			sessions = append(sessions, Session{Key: key, Name: name, Project: es.Project})
			i = len(sessions) - 1
			index[key] = i
		}
		sessions[i].Signups = append(sessions[i].Signups, es)
	}

	candidates := sessions[:0]
	for _, s := range sessions {
		if reason := skipReason(s); reason != "" {
			logger.Debug("Skipping session",
				zap.String("project_id", s.Key.ProjectID),
				zap.String("schedule_id", s.Key.ScheduleID),
				zap.String("reason", reason))
			continue
		}
		candidates = append(candidates, s)
	}
	return candidates
}

// skipReason returns why a session is not a candidate, or "" if it is
func skipReason(s Session) string {
	switch {
	case s.Project.IsPublished(s.Key.ScheduleID):
		return "already published"
	case !s.Project.CheckInMethod.SupportsAutoPublish():
		return "check-in method " + string(s.Project.CheckInMethod) + " not supported"
	case s.Project.Status == model.ProjectStatusCancelled:
		return "project cancelled"
	}
	return ""
}
