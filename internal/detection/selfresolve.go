package detection

import (
	"context"
	"log/slog"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/utils"
)

// SelfResolutionLookback is how far back resolved history is considered
const SelfResolutionLookback = 7 * 24 * time.Hour

// SelfResolutionResult is the outcome of a self-resolution check
type SelfResolutionResult struct {
	IsSelfResolving  bool    `json:"is_self_resolving"`
	TotalResolved    int     `json:"total_resolved"`
	QuickResolved    int     `json:"quick_resolved"`
	ThresholdMinutes int     `json:"threshold_minutes"`
	Confidence       float64 `json:"confidence"`
	MeanMinutes      float64 `json:"mean_minutes"`
	MinMinutes       float64 `json:"min_minutes"`
	MaxMinutes       float64 `json:"max_minutes"`
	StdDevMinutes    float64 `json:"stddev_minutes"`
	NoData           bool    `json:"no_data"`
	Err              error   `json:"-"`
}

// SelfResolutionDetector looks for host/title pairs that historically clear on their own
type SelfResolutionDetector struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewSelfResolutionDetector creates a self-resolution detector
func NewSelfResolutionDetector(store Store, timeout time.Duration, logger *slog.Logger) *SelfResolutionDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &SelfResolutionDetector{store: store, timeout: timeout, logger: logger.With("component", "self_resolution_detector")}
}

// Detect evaluates resolved history in the 7 days before the alert
func (d *SelfResolutionDetector) Detect(ctx context.Context, alert alerts.Alert, settings config.Settings) SelfResolutionResult {
	from, to := window(alert.CreatedAt, SelfResolutionLookback)
	history, err := queryWithTimeout(ctx, d.store, Query{
		Host:         alert.Host,
		Title:        alert.Title,
		From:         from,
		To:           to,
		ResolvedOnly: true,
	}, d.timeout)
	if err != nil {
		d.logger.Warn("self-resolution check failed, treating as not self-resolving",
			"alert_id", alert.IDString(),
			"host", utils.EscapeForLogging(alert.Host, maxLoggedField),
			"title", utils.EscapeForLogging(alert.Title, maxLoggedField),
			"error", err)
		return SelfResolutionResult{
			ThresholdMinutes: settings.SelfResolveThresholdMinutes,
			Err:              asStoreError("self-resolution query", err),
		}
	}

	return EvaluateSelfResolution(history, settings.SelfResolveThresholdMinutes, settings.MinResolutionCount)
}

// EvaluateSelfResolution computes the verdict over resolved alerts.
// Resolution time is counted in whole minutes, truncated.
func EvaluateSelfResolution(resolved []alerts.Alert, thresholdMinutes, minCount int) SelfResolutionResult {
	result := SelfResolutionResult{ThresholdMinutes: thresholdMinutes}

	minutes := make(stats.Float64Data, 0, len(resolved))
	for _, a := range resolved {
		if a.ResolvedAt == nil {
			continue
		}
		m := int(a.ResolvedAt.Sub(a.CreatedAt) / time.Minute)
		if m < 0 {
			continue
		}
		minutes = append(minutes, float64(m))
		if m <= thresholdMinutes {
			result.QuickResolved++
		}
	}

	result.TotalResolved = len(minutes)
	if result.TotalResolved == 0 {
		result.NoData = true
		return result
	}

	result.Confidence = float64(result.QuickResolved) / float64(result.TotalResolved)
	result.IsSelfResolving = result.TotalResolved >= minCount &&
		10*result.QuickResolved >= 7*result.TotalResolved

	// Errors only occur on empty input, which is handled above
	result.MeanMinutes, _ = stats.Mean(minutes)
	result.MinMinutes, _ = stats.Min(minutes)
	result.MaxMinutes, _ = stats.Max(minutes)
	result.StdDevMinutes, _ = stats.StandardDeviationPopulation(minutes)

	return result
}
