package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/detection"
)

// AlertStore is the gorm-backed historical alert store.
// Every filter is a bound parameter; alert text never reaches the SQL string.
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates a store on db
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// Query implements detection.Store
func (s *AlertStore) Query(ctx context.Context, q detection.Query) ([]alerts.Alert, error) {
	tx := s.db.WithContext(ctx).
		Model(&AlertRecord{}).
		Where("host = ?", q.Host).
		Where("created_at >= ? AND created_at < ?", q.From.UTC(), q.To.UTC())

	if q.Title != "" {
		tx = tx.Where("title = ?", q.Title)
	}
	if q.Severity != nil {
		tx = tx.Where("severity = ?", string(*q.Severity))
	}
	if q.ResolvedOnly {
		tx = tx.Where("resolved_at IS NOT NULL")
	}

	var rows []AlertRecord
	if err := tx.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, &detection.StoreError{Op: "query alerts", Err: err}
	}

	out := make([]alerts.Alert, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToAlert())
	}
	return out, nil
}

// Append inserts a decided alert
func (s *AlertStore) Append(ctx context.Context, alert alerts.Alert) error {
	rec := NewAlertRecord(alert)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return &detection.StoreError{Op: "append alert", Err: err}
	}
	return nil
}

// Count returns the number of stored alerts
func (s *AlertStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&AlertRecord{}).Count(&n).Error; err != nil {
		return 0, &detection.StoreError{Op: "count alerts", Err: err}
	}
	return n, nil
}
