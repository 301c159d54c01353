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

// FlappingResult is the outcome of a flapping check
type FlappingResult struct {
	IsFlapping     bool       `json:"is_flapping"`
	Transitions    int        `json:"transitions"`
	TotalAlerts    int        `json:"total_alerts"`
	Threshold      int        `json:"threshold"`
	WindowMinutes  int        `json:"window_minutes"`
	Confidence     float64    `json:"confidence"`
	FirstAlert     *time.Time `json:"first_alert,omitempty"`
	LastAlert      *time.Time `json:"last_alert,omitempty"`
	DaysWithAlerts int        `json:"days_with_alerts"`
	NoData         bool       `json:"no_data"`
	Err            error      `json:"-"`
}

// FlappingDetector counts status transitions for a host/title pair
type FlappingDetector struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewFlappingDetector creates a flapping detector
func NewFlappingDetector(store Store, timeout time.Duration, logger *slog.Logger) *FlappingDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlappingDetector{store: store, timeout: timeout, logger: logger.With("component", "flapping_detector")}
}

// Detect evaluates the flapping window preceding the alert
func (d *FlappingDetector) Detect(ctx context.Context, alert alerts.Alert, settings config.Settings) FlappingResult {
	from, to := window(alert.CreatedAt, settings.FlappingWindow())
	history, err := queryWithTimeout(ctx, d.store, Query{
		Host:  alert.Host,
		Title: alert.Title,
		From:  from,
		To:    to,
	}, d.timeout)
	if err != nil {
		d.logger.Warn("flapping check failed, treating as not flapping",
			"alert_id", alert.IDString(),
			"host", utils.EscapeForLogging(alert.Host, maxLoggedField),
			"title", utils.EscapeForLogging(alert.Title, maxLoggedField),
			"error", err)
		return FlappingResult{
			Threshold:     settings.FlappingThreshold,
			WindowMinutes: settings.FlappingWindowMinutes,
			Err:           asStoreError("flapping query", err),
		}
	}

	result := EvaluateFlapping(history, settings.FlappingThreshold)
	result.WindowMinutes = settings.FlappingWindowMinutes
	return result
}

// EvaluateFlapping computes the flapping verdict over a pattern window.
// A nil status is its own value, so nil -> "firing" is a transition.
func EvaluateFlapping(pattern []alerts.Alert, threshold int) FlappingResult {
	result := FlappingResult{Threshold: threshold, TotalAlerts: len(pattern)}
	if len(pattern) == 0 {
		result.NoData = true
		return result
	}

	ordered := slices.Clone(pattern)
	slices.SortStableFunc(ordered, func(a, b alerts.Alert) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	days := make(map[string]struct{})
	for i, a := range ordered {
		days[a.CreatedAt.UTC().Format(time.DateOnly)] = struct{}{}
		if i > 0 && !sameStatus(ordered[i-1].Status, a.Status) {
			result.Transitions++
		}
	}

	first := ordered[0].CreatedAt
	last := ordered[len(ordered)-1].CreatedAt
	result.FirstAlert = &first
	result.LastAlert = &last
	result.DaysWithAlerts = len(days)

	if threshold > 0 {
		result.Confidence = min(float64(result.Transitions)/float64(threshold), 1.0)
	}
	result.IsFlapping = result.Transitions >= threshold && result.TotalAlerts > 1

	return result
}

func sameStatus(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
