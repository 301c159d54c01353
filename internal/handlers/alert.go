package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/api"
	"github.com/akmatori/alertsieve/internal/jobs"
)

// Submitter queues alerts for asynchronous processing
type Submitter interface {
	Submit(alert alerts.Alert) error
}

// AlertHandler receives monitoring webhooks and queues the parsed alerts
type AlertHandler struct {
	adapters map[string]alerts.AlertAdapter
	secrets  map[string]string
	queue    Submitter
	logger   *slog.Logger
}

// NewAlertHandler creates a new alert handler. secrets maps source path segment to shared secret.
func NewAlertHandler(adapters map[string]alerts.AlertAdapter, secrets map[string]string, queue Submitter, logger *slog.Logger) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if secrets == nil {
		secrets = map[string]string{}
	}
	return &AlertHandler{
		adapters: adapters,
		secrets:  secrets,
		queue:    queue,
		logger:   logger.With("component", "webhook"),
	}
}

// HandleWebhook handles POST /webhook/alert/{source}
func (h *AlertHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondMethodNotAllowed(w, http.MethodPost)
		return
	}

	source := strings.Trim(strings.TrimPrefix(r.URL.Path, "/webhook/alert/"), "/")
	if source == "" {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeUnknownSource, "Missing source")
		return
	}

	adapter, ok := h.adapters[source]
	if !ok {
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeUnknownSource, "Unsupported source: "+source)
		return
	}

	if err := adapter.ValidateWebhookSecret(r, h.secrets[source]); err != nil {
		h.logger.Warn("webhook secret validation failed", "source", source, "remote_addr", r.RemoteAddr, "error", err)
		api.RespondErrorWithCode(w, http.StatusUnauthorized, api.CodeInvalidSecret, "Unauthorized")
		return
	}

	body, err := api.ReadBody(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, api.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		api.RespondErrorWithCode(w, status, api.CodeInvalidBody, err.Error())
		return
	}

	parsed, err := adapter.ParsePayload(body)
	if err != nil {
		h.logger.Warn("invalid webhook payload", "source", source, "error", err)
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidBody, "Invalid payload")
		return
	}

	resp := api.AcceptedResponse{Source: source}
	for _, alert := range parsed {
		switch err := h.queue.Submit(alert); {
		case err == nil:
			resp.Accepted++
			if id := alert.IDString(); id != "" {
				resp.AlertIDs = append(resp.AlertIDs, id)
			}
		case errors.Is(err, jobs.ErrPoolClosed):
			api.RespondErrorWithCode(w, http.StatusServiceUnavailable, api.CodeShuttingDown, "Service is shutting down")
			return
		default:
			resp.Rejected++
		}
	}

	h.logger.Info("webhook received", "source", source, "accepted", resp.Accepted, "rejected", resp.Rejected)

	if resp.Rejected > 0 {
		w.Header().Set("Retry-After", "5")
		api.RespondJSON(w, http.StatusTooManyRequests, resp)
		return
	}
	api.RespondJSON(w, http.StatusAccepted, resp)
}
