package executor

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/metrics"
	"github.com/akmatori/alertsieve/internal/notify"
	"github.com/akmatori/alertsieve/internal/policy"
	"github.com/akmatori/alertsieve/internal/utils"
)

// maxLoggedField caps alert-derived strings in log lines
const maxLoggedField = 200

// AuditSink persists audit entries durably
type AuditSink interface {
	SaveEntry(ctx context.Context, entry Entry) error
}

// HistoryWriter appends decided alerts to the historical store
type HistoryWriter interface {
	Append(ctx context.Context, alert alerts.Alert) error
}

// Publisher fans entries out to live subscribers
type Publisher interface {
	Publish(entry Entry)
}

// Request is everything the executor needs to act on one decision
type Request struct {
	Alert    alerts.Alert
	Decision policy.Decision
	Degraded []string
	Evidence map[string]any
}

// ActionResult describes what the executor did
type ActionResult struct {
	EntryID      string         `json:"entry_id"`
	Action       string         `json:"action"`
	Notification *notify.Result `json:"notification,omitempty"`
	HistoryError string         `json:"history_error,omitempty"`
	SinkError    string         `json:"sink_error,omitempty"`
}

// Failed reports whether any side effect beyond the in-memory audit log failed
func (r ActionResult) Failed() bool {
	return r.HistoryError != "" || r.SinkError != "" || (r.Notification != nil && r.Notification.Error != "")
}

// Executor records decisions and performs the follow-up actions
type Executor struct {
	audit     *AuditLog
	notifier  notify.Notifier
	sink      AuditSink
	history   HistoryWriter
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Executor
type Option func(*Executor)

// WithAuditSink adds a durable audit sink
func WithAuditSink(sink AuditSink) Option {
	return func(e *Executor) { e.sink = sink }
}

// WithHistory appends decided alerts to the historical store
func WithHistory(history HistoryWriter) Option {
	return func(e *Executor) { e.history = history }
}

// WithPublisher streams entries to subscribers
func WithPublisher(publisher Publisher) Option {
	return func(e *Executor) { e.publisher = publisher }
}

// WithClock overrides the entry timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an executor. A nil notifier skips notifications.
func NewExecutor(audit *AuditLog, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	e := &Executor{
		audit:    audit,
		notifier: notifier,
		logger:   logger.With("component", "executor"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AuditLog returns the in-memory audit log
func (e *Executor) AuditLog() *AuditLog {
	return e.audit
}

// Execute appends the audit entry, writes history and notifies on forward.
// Side-effect failures are reported in the result; the decision itself never changes.
func (e *Executor) Execute(ctx context.Context, req Request) ActionResult {
	decided := req.Alert.WithDecision(req.Decision.Reason)

	action := ActionForwarded
	if req.Decision.Action == policy.ActionSuppress {
		action = ActionSuppressed
	}

	entry := Entry{
		ID:         uuid.NewString(),
		AlertID:    req.Alert.IDString(),
		Timestamp:  e.now().UTC(),
		Action:     action,
		Reason:     req.Decision.Reason,
		Confidence: req.Decision.Confidence,
		Alert:      decided,
		Degraded:   slices.Clone(req.Degraded),
		Evidence:   req.Evidence,
	}
	e.audit.Append(entry)

	result := ActionResult{EntryID: entry.ID, Action: action}
	logger := e.logger.With(
		"entry_id", entry.ID,
		"alert_id", utils.EscapeForLogging(entry.AlertID, maxLoggedField),
		"host", utils.EscapeForLogging(decided.Host, maxLoggedField),
		"title", utils.EscapeForLogging(decided.Title, maxLoggedField),
	)

	if e.sink != nil {
		if err := e.sink.SaveEntry(ctx, entry); err != nil {
			result.SinkError = err.Error()
			logger.Error("failed to persist audit entry", "error", err)
		}
	}

	if e.history != nil {
		if err := e.history.Append(ctx, decided); err != nil {
			result.HistoryError = err.Error()
			logger.Error("failed to append alert to history", "error", err)
		}
	}

	if req.Decision.Action == policy.ActionForward {
		alertID := entry.AlertID
		if alertID == "" {
			alertID = entry.ID
		}
		n := e.notifier.Notify(ctx, notify.Payload{
			Decision: string(req.Decision.Action),
			AlertID:  alertID,
			Reason:   req.Decision.Reason,
		})
		result.Notification = &n
		if n.Err != nil {
			logger.Warn("notification failed", "error", n.Err)
		}
	}

	if e.publisher != nil {
		e.publisher.Publish(entry.clone())
	}

	metrics.ObserveDecision(string(req.Decision.Action), req.Decision.Rule())
	logger.Info("alert "+action, "reason", entry.Reason, "confidence", entry.Confidence)
	return result
}
