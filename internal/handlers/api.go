package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/alerts/adapters"
	"github.com/akmatori/alertsieve/internal/api"
	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/executor"
	"github.com/akmatori/alertsieve/internal/services"
	"github.com/akmatori/alertsieve/internal/workflow"
)

// evaluateTimeout bounds a synchronous evaluation once detached from the request
const evaluateTimeout = 30 * time.Second

// Pipeline runs alerts through the decision workflow synchronously
type Pipeline interface {
	Process(ctx context.Context, alert alerts.Alert) workflow.Record
	Evaluate(ctx context.Context, alert alerts.Alert) workflow.Record
}

// DecisionLister reads recorded decisions newest first
type DecisionLister interface {
	List(ctx context.Context, filter executor.Filter) ([]executor.Entry, error)
}

// SummaryReader builds noise-reduction summaries
type SummaryReader interface {
	SummaryForLast(ctx context.Context, window time.Duration) (services.Summary, error)
}

// HistoryReader reports per-host alert history
type HistoryReader interface {
	HostHistory(ctx context.Context, host string, now time.Time) (services.HostHistory, error)
}

// APIConfig carries the read-only state reported by /api/settings
type APIConfig struct {
	Settings           config.Settings
	ClassifierEnabled  bool
	NotifierConfigured bool
}

// APIHandler serves the decision API
type APIHandler struct {
	pipeline  Pipeline
	decisions DecisionLister
	summaries SummaryReader
	history   HistoryReader
	parser    *adapters.GenericAdapter
	config    APIConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(pipeline Pipeline, decisions DecisionLister, summaries SummaryReader, history HistoryReader, cfg APIConfig, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{
		pipeline:  pipeline,
		decisions: decisions,
		summaries: summaries,
		history:   history,
		parser:    adapters.NewGenericAdapter(),
		config:    cfg,
		now:       time.Now,
		logger:    logger.With("component", "api"),
	}
}

// SetupRoutes configures API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/alerts/evaluate", h.handleEvaluate)
	mux.HandleFunc("/api/decisions", h.handleDecisions)
	mux.HandleFunc("/api/summary", h.handleSummary)
	mux.HandleFunc("/api/history", h.handleHistory)
	mux.HandleFunc("/api/settings", h.handleSettings)
}

// handleEvaluate handles POST /api/alerts/evaluate[?dry_run=true].
// A single alert object returns one record; an array returns a list.
func (h *APIHandler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondMethodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := api.ReadBody(w, r)
	if err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidBody, err.Error())
		return
	}
	parsed, err := h.parser.ParsePayload(body)
	if err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidBody, "Invalid alert payload")
		return
	}

	run := h.pipeline.Process
	if api.QueryBool(r, "dry_run") {
		run = h.pipeline.Evaluate
	}

	// A client disconnect must not turn detector queries into fail-open forwards.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), evaluateTimeout)
	defer cancel()

	records := make([]workflow.Record, 0, len(parsed))
	for _, alert := range parsed {
		records = append(records, run(ctx, alert))
	}

	if len(records) == 1 && !bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
		api.RespondJSON(w, http.StatusOK, records[0])
		return
	}
	api.RespondJSON(w, http.StatusOK, records)
}

// handleDecisions handles GET /api/decisions?action=&host=&page=&limit=
func (h *APIHandler) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondMethodNotAllowed(w, http.MethodGet)
		return
	}

	q := api.DecisionsQuery{
		Action: strings.ToLower(r.URL.Query().Get("action")),
		Host:   r.URL.Query().Get("host"),
	}
	if errs := api.Validate(q); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	page := api.ParsePagination(r)
	entries, err := h.decisions.List(r.Context(), page.Apply(executor.Filter{Action: q.Action, Host: q.Host}))
	if err != nil {
		h.logger.Error("failed to list decisions", "error", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list decisions")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.DecisionsResponse{
		Decisions:  api.EntriesToDecisions(entries),
		Pagination: page,
	})
}

// handleSummary handles GET /api/summary?hours=24
func (h *APIHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondMethodNotAllowed(w, http.MethodGet)
		return
	}

	hours, err := api.QueryInt(r, "hours", 24)
	if err != nil {
		api.RespondValidationError(w, map[string]string{"hours": err.Error()})
		return
	}
	q := api.SummaryQuery{Hours: hours}
	if errs := api.Validate(q); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	sum, err := h.summaries.SummaryForLast(r.Context(), time.Duration(q.Hours)*time.Hour)
	if err != nil {
		h.logger.Error("failed to build summary", "error", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.SummaryResponse{Summary: sum, Text: sum.Text()})
}

// handleHistory handles GET /api/history?host=
func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondMethodNotAllowed(w, http.MethodGet)
		return
	}

	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		api.RespondValidationError(w, map[string]string{"host": "is required"})
		return
	}

	hist, err := h.history.HostHistory(r.Context(), host, h.now().UTC())
	if err != nil {
		h.logger.Error("failed to read host history", "host", host, "error", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to read host history")
		return
	}
	api.RespondJSON(w, http.StatusOK, hist)
}

// handleSettings handles GET /api/settings
func (h *APIHandler) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondMethodNotAllowed(w, http.MethodGet)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.SettingsResponse{
		Settings:           h.config.Settings,
		ClassifierEnabled:  h.config.ClassifierEnabled,
		NotifierConfigured: h.config.NotifierConfigured,
	})
}
