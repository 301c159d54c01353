package detection

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/utils"
)

// MaxRecentDuplicates caps the number of matching alerts echoed back in a result
const MaxRecentDuplicates = 10

// DuplicateResult is the outcome of a duplicate check
type DuplicateResult struct {
	IsDuplicate    bool           `json:"is_duplicate"`
	DuplicateCount int            `json:"duplicate_count"`
	Recent         []alerts.Alert `json:"recent,omitempty"`
	WindowMinutes  int            `json:"window_minutes"`
	Confidence     float64        `json:"confidence"`
	NoData         bool           `json:"no_data"`
	Err            error          `json:"-"`
}

// DuplicateDetector finds prior alerts with the same host, title and severity
type DuplicateDetector struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewDuplicateDetector creates a duplicate detector. A nil logger falls back to slog.Default().
func NewDuplicateDetector(store Store, timeout time.Duration, logger *slog.Logger) *DuplicateDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuplicateDetector{store: store, timeout: timeout, logger: logger.With("component", "duplicate_detector")}
}

// Detect checks [CreatedAt - window, CreatedAt) for matching alerts.
// A store failure yields a negative result with Err set.
func (d *DuplicateDetector) Detect(ctx context.Context, alert alerts.Alert, settings config.Settings) DuplicateResult {
	result := DuplicateResult{WindowMinutes: settings.DuplicateWindowMinutes}

	if settings.DuplicateWindowMinutes <= 0 {
		result.NoData = true
		return result
	}

	severity := alert.Severity
	from, to := window(alert.CreatedAt, settings.DuplicateWindow())
	history, err := queryWithTimeout(ctx, d.store, Query{
		Host:     alert.Host,
		Title:    alert.Title,
		Severity: &severity,
		From:     from,
		To:       to,
	}, d.timeout)
	if err != nil {
		result.Err = asStoreError("duplicate query", err)
		d.logger.Warn("duplicate check failed, treating as not duplicate",
			"alert_id", alert.IDString(),
			"host", utils.EscapeForLogging(alert.Host, maxLoggedField),
			"title", utils.EscapeForLogging(alert.Title, maxLoggedField),
			"error", err)
		return result
	}

	matches := make([]alerts.Alert, 0, len(history))
	for _, h := range history {
		// Replays of the same alert are not duplicates of themselves
		if alert.ID != nil && h.ID != nil && *h.ID == *alert.ID {
			continue
		}
		matches = append(matches, h)
	}

	result.DuplicateCount = len(matches)
	if len(matches) == 0 {
		result.NoData = len(history) == 0
		return result
	}

	result.IsDuplicate = true
	result.Confidence = 1.0

	slices.SortStableFunc(matches, func(a, b alerts.Alert) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(matches) > MaxRecentDuplicates {
		matches = matches[:MaxRecentDuplicates]
	}
	result.Recent = matches

	return result
}
