package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akmatori/alertsieve/internal/api"
)

// Version is reported by /health
const Version = "1.0.0"

// QueueStatus exposes intake backlog for health reporting
type QueueStatus interface {
	Pending() int
}

// HTTPHandler handles HTTP endpoints
type HTTPHandler struct {
	alertHandler *AlertHandler
	gatherer     prometheus.Gatherer
	queue        QueueStatus
}

// NewHTTPHandler creates a new HTTP handler. A nil gatherer disables /metrics.
func NewHTTPHandler(alertHandler *AlertHandler, gatherer prometheus.Gatherer, queue QueueStatus) *HTTPHandler {
	return &HTTPHandler{
		alertHandler: alertHandler,
		gatherer:     gatherer,
		queue:        queue,
	}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	// Alert webhooks: /webhook/alert/{source}
	if h.alertHandler != nil {
		mux.HandleFunc("/webhook/alert/", h.alertHandler.HandleWebhook)
	}
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondMethodNotAllowed(w, http.MethodGet)
		return
	}

	response := map[string]interface{}{
		"status":  "ok",
		"version": Version,
	}
	if h.queue != nil {
		response["queue_pending"] = h.queue.Pending()
	}
	api.RespondJSON(w, http.StatusOK, response)
}
