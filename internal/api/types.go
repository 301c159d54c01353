package api

import (
	"time"

	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/services"
)

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// DecisionsQuery holds the filters of GET /api/decisions.
type DecisionsQuery struct {
	Action string `validate:"omitempty,oneof=suppressed forwarded"`
	Host   string `validate:"omitempty,max=255"`
}

// SummaryQuery holds the parameters of GET /api/summary.
type SummaryQuery struct {
	Hours int `validate:"min=1,max=720"`
}

// DecisionItem is one audit entry as listed by the API.
type DecisionItem struct {
	ID         string    `json:"id"`
	AlertID    string    `json:"alert_id"`
	Host       string    `json:"host"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	Severity   string    `json:"severity"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason"`
	Rule       string    `json:"rule"`
	Confidence float64   `json:"confidence"`
	Degraded   []string  `json:"degraded,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}

// DecisionsResponse is the body of GET /api/decisions.
type DecisionsResponse struct {
	Decisions  []DecisionItem   `json:"decisions"`
	Pagination PaginationParams `json:"pagination"`
}

// SummaryResponse is the body of GET /api/summary.
type SummaryResponse struct {
	services.Summary
	Text string `json:"text"`
}

// SettingsResponse is the body of GET /api/settings.
type SettingsResponse struct {
	Settings           config.Settings `json:"settings"`
	ClassifierEnabled  bool            `json:"classifier_enabled"`
	NotifierConfigured bool            `json:"notifier_configured"`
}

// AcceptedResponse is returned by the webhook once alerts are queued.
type AcceptedResponse struct {
	Source   string   `json:"source"`
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected,omitempty"`
	AlertIDs []string `json:"alert_ids,omitempty"`
}
