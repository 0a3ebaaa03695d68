package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
)

// Schedule yields the next run time strictly after a given instant.
// A zero time means there are no further runs.
type Schedule interface {
	Next(after time.Time) time.Time
	String() string
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a standard 5-field cron expression evaluated in loc
func ParseCron(expression string, loc *time.Location) (Schedule, error) {
	sched, err := cronParser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}
	return &cronSchedule{expr: expression, sched: sched, loc: loc}, nil
}

type cronSchedule struct {
	expr  string
	sched cron.Schedule
	loc   *time.Location
}

func (s *cronSchedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}

func (s *cronSchedule) String() string {
	return fmt.Sprintf("cron %q (%s)", s.expr, s.loc)
}

// ParseRRule parses an RFC 5545 RRULE evaluated in loc.
// Rules without DTSTART are anchored at midnight of the day containing now.
func ParseRRule(rule string, loc *time.Location, now time.Time) (Schedule, error) {
	opt, err := rrule.StrToROptionInLocation(rule, loc)
	if err != nil {
		return nil, fmt.Errorf("parse rrule: %w", err)
	}
	if opt.Dtstart.IsZero() {
		n := now.In(loc)
		opt.Dtstart = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}
	return &rruleSchedule{src: rule, rule: r, loc: loc}, nil
}

type rruleSchedule struct {
	src  string
	rule *rrule.RRule
	loc  *time.Location
}

func (s *rruleSchedule) Next(after time.Time) time.Time {
	return s.rule.After(after.In(s.loc), false)
}

func (s *rruleSchedule) String() string {
	return fmt.Sprintf("rrule %q (%s)", s.src, s.loc)
}

// Parse builds a schedule from whichever of cronExpr and rruleStr is set.
// It returns nil when neither is.
func Parse(cronExpr, rruleStr string, loc *time.Location, now time.Time) (Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch {
	case cronExpr != "" && rruleStr != "":
		return nil, fmt.Errorf("only one of cron and rrule may be set")
	case cronExpr != "":
		return ParseCron(cronExpr, loc)
	case rruleStr != "":
		return ParseRRule(rruleStr, loc, now)
	}
	return nil, nil
}
