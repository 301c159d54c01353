package services

import (
	"context"
	"errors"
	"time"

	"github.com/akmatori/alertsieve/internal/classifier"
	"github.com/akmatori/alertsieve/internal/detection"
	"github.com/akmatori/alertsieve/internal/policy"
)

// HistoryWindow is the lookback used for host history
const HistoryWindow = 7 * 24 * time.Hour

// HostHistory describes how noisy a host has been recently
type HostHistory struct {
	Host            string     `json:"host"`
	WindowDays      int        `json:"window_days"`
	TotalAlerts     int        `json:"total_alerts"`
	DaysWithAlerts  int        `json:"days_with_alerts"`
	SuppressionRate float64    `json:"suppression_rate"`
	LastAlertAt     *time.Time `json:"last_alert_at"`
}

// HistoryService reads host history from the historical store
type HistoryService struct {
	store detection.Store
}

// NewHistoryService creates a history service
func NewHistoryService(store detection.Store) *HistoryService {
	return &HistoryService{store: store}
}

// HostHistory summarizes alerts for host in the seven days before now
func (s *HistoryService) HostHistory(ctx context.Context, host string, now time.Time) (HostHistory, error) {
	if host == "" {
		return HostHistory{}, errors.New("host is required")
	}

	rows, err := s.store.Query(ctx, detection.Query{
		Host: host,
		From: now.Add(-HistoryWindow),
		To:   now,
	})
	if err != nil {
		return HostHistory{}, err
	}

	h := HostHistory{Host: host, WindowDays: int(HistoryWindow / (24 * time.Hour)), TotalAlerts: len(rows)}
	if len(rows) == 0 {
		return h, nil
	}

	days := map[string]struct{}{}
	suppressed := 0
	for _, a := range rows {
		days[a.CreatedAt.UTC().Format("2006-01-02")] = struct{}{}
		if a.DecisionReason != nil && suppressedReason(*a.DecisionReason) {
			suppressed++
		}
	}
	last := rows[len(rows)-1].CreatedAt.UTC()

	h.DaysWithAlerts = len(days)
	h.SuppressionRate = float64(suppressed) / float64(len(rows))
	h.LastAlertAt = &last
	return h, nil
}

// suppressedReason accepts both current reasons and legacy classifier labels stored as reasons
func suppressedReason(reason string) bool {
	return policy.IsSuppressReason(reason) || classifier.CanonicalLabel(reason) == classifier.LabelSuppress
}
