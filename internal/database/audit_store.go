package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/akmatori/alertsieve/internal/executor"
)

// AuditStore persists audit entries in the audit_entries table
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore creates a store on db
func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

// SaveEntry implements executor.AuditSink. Entries are insert-only.
func (s *AuditStore) SaveEntry(ctx context.Context, entry executor.Entry) error {
	rec, err := NewAuditEntryRecord(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save audit entry: %w", err)
	}
	return nil
}

// ListSince implements executor.AuditReader, oldest first
func (s *AuditStore) ListSince(ctx context.Context, since time.Time) ([]executor.Entry, error) {
	var rows []AuditEntryRecord
	err := s.db.WithContext(ctx).
		Where("decided_at >= ?", since.UTC()).
		Order("decided_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return toEntries(rows), nil
}

// List returns entries newest first
func (s *AuditStore) List(ctx context.Context, filter executor.Filter) ([]executor.Entry, error) {
	tx := s.db.WithContext(ctx).Model(&AuditEntryRecord{})
	if filter.Action != "" {
		tx = tx.Where("action = ?", filter.Action)
	}
	if filter.Host != "" {
		tx = tx.Where("host = ?", filter.Host)
	}
	if !filter.Since.IsZero() {
		tx = tx.Where("decided_at >= ?", filter.Since.UTC())
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		tx = tx.Offset(filter.Offset)
	}

	var rows []AuditEntryRecord
	if err := tx.Order("decided_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return toEntries(rows), nil
}

func toEntries(rows []AuditEntryRecord) []executor.Entry {
	out := make([]executor.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToEntry())
	}
	return out
}
