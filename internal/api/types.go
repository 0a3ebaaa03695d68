package api

import (
	"time"

	"github.com/jakechorley/volunteer-hours/pkg/core/autopublish"
)

type SessionResultResponse struct {
	Success             bool     `json:"success"`
	ProjectID           string   `json:"projectId"`
	SessionID           string   `json:"sessionId"`
	SessionName         string   `json:"sessionName"`
	CertificatesCreated int      `json:"certificatesCreated"`
	EmailsSent          int      `json:"emailsSent"`
	Errors              []string `json:"errors"`
}

type RunResponse struct {
	Message            string                  `json:"message"`
	ProcessedSessions  int                     `json:"processedSessions"`
	SuccessfulSessions int                     `json:"successfulSessions"`
	ExecutionTimeMs    int64                   `json:"executionTimeMs"`
	Results            []SessionResultResponse `json:"results"`
	Error              string                  `json:"error,omitempty"`
}

type WindowResponse struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type StatusResponse struct {
	Status   string         `json:"status"`
	Enabled  bool           `json:"enabled"`
	Window   WindowResponse `json:"window"`
	Schedule string         `json:"schedule,omitempty"`
	NextRun  *time.Time     `json:"nextRun,omitempty"`
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toRunResponse(report *autopublish.JobReport) RunResponse {
	resp := RunResponse{
		Message:            report.Message,
		ProcessedSessions:  report.SessionsScanned,
		SuccessfulSessions: report.SessionsSucceeded,
		ExecutionTimeMs:    report.Duration.Milliseconds(),
		Results:            make([]SessionResultResponse, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		errs := r.Errors
		if errs == nil {
			errs = []string{}
		}
		resp.Results = append(resp.Results, SessionResultResponse{
			Success:             r.Success,
			ProjectID:           r.ProjectID,
			SessionID:           r.SessionID,
			SessionName:         r.SessionName,
			CertificatesCreated: r.CertificatesCreated,
			EmailsSent:          r.EmailsSent,
			Errors:              errs,
		})
	}
	return resp
}
