package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/executor"
)

// JSONB is a custom type for JSON columns (jsonb on PostgreSQL, text on sqlite)
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(data, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// AlertRecord is one row of the historical alert store
type AlertRecord struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ExternalID     *string    `gorm:"type:varchar(255);index" json:"external_id"`
	Source         string     `gorm:"type:varchar(32);not null" json:"source"`
	Host           string     `gorm:"type:varchar(255);not null;index:idx_alerts_host_title_created,priority:1" json:"host"`
	Title          string     `gorm:"type:varchar(512);not null;index:idx_alerts_host_title_created,priority:2" json:"title"`
	Severity       string     `gorm:"type:varchar(8);not null" json:"severity"`
	Status         *string    `gorm:"type:varchar(32)" json:"status"`
	CreatedAt      time.Time  `gorm:"not null;autoCreateTime:false;index:idx_alerts_host_title_created,priority:3" json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	DecisionReason *string    `gorm:"type:varchar(255)" json:"decision_reason"`
	InsertedAt     time.Time  `gorm:"autoCreateTime" json:"inserted_at"`
}

func (AlertRecord) TableName() string {
	return "alerts"
}

// NewAlertRecord converts a domain alert into a row. Times are stored in UTC.
func NewAlertRecord(a alerts.Alert) AlertRecord {
	c := a.Clone()
	rec := AlertRecord{
		ExternalID:     c.ID,
		Source:         string(c.Source),
		Host:           c.Host,
		Title:          c.Title,
		Severity:       string(c.Severity),
		Status:         c.Status,
		CreatedAt:      c.CreatedAt.UTC(),
		DecisionReason: c.DecisionReason,
	}
	if c.ResolvedAt != nil {
		r := c.ResolvedAt.UTC()
		rec.ResolvedAt = &r
	}
	return rec
}

// ToAlert converts a row back into a domain alert
func (r AlertRecord) ToAlert() alerts.Alert {
	a := alerts.Alert{
		ID:             r.ExternalID,
		Source:         alerts.Source(r.Source),
		Host:           r.Host,
		Title:          r.Title,
		Severity:       alerts.Severity(r.Severity),
		Status:         r.Status,
		CreatedAt:      r.CreatedAt.UTC(),
		DecisionReason: r.DecisionReason,
	}
	if r.ResolvedAt != nil {
		a.ResolvedAt = alerts.TimePtr(r.ResolvedAt.UTC())
	}
	return a.Clone()
}

// AuditEntryRecord is the durable copy of an executor.Entry
type AuditEntryRecord struct {
	ID         string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	AlertID    string       `gorm:"type:varchar(255);index" json:"alert_id"`
	Timestamp  time.Time    `gorm:"column:decided_at;not null;index" json:"timestamp"`
	Action     string       `gorm:"type:varchar(16);not null;index" json:"action"`
	Reason     string       `gorm:"type:varchar(255);not null" json:"reason"`
	Confidence float64      `json:"confidence"`
	Host       string       `gorm:"type:varchar(255);index" json:"host"`
	Alert      alerts.Alert `gorm:"type:text;serializer:json" json:"alert"`
	Degraded   []string     `gorm:"type:text;serializer:json" json:"degraded"`
	Evidence   JSONB        `gorm:"type:jsonb" json:"evidence"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (AuditEntryRecord) TableName() string {
	return "audit_entries"
}

// NewAuditEntryRecord converts an executor entry into a row
func NewAuditEntryRecord(e executor.Entry) (AuditEntryRecord, error) {
	rec := AuditEntryRecord{
		ID:         e.ID,
		AlertID:    e.AlertID,
		Timestamp:  e.Timestamp.UTC(),
		Action:     e.Action,
		Reason:     e.Reason,
		Confidence: e.Confidence,
		Host:       e.Alert.Host,
		Alert:      e.Alert.Clone(),
		Degraded:   e.Degraded,
	}
	if len(e.Evidence) > 0 {
		// Round-trip through JSON so typed detector results become plain maps
		data, err := json.Marshal(e.Evidence)
		if err != nil {
			return AuditEntryRecord{}, err
		}
		var ev JSONB
		if err := json.Unmarshal(data, &ev); err != nil {
			return AuditEntryRecord{}, err
		}
		rec.Evidence = ev
	}
	return rec, nil
}

// ToEntry converts a row back into an executor entry
func (r AuditEntryRecord) ToEntry() executor.Entry {
	e := executor.Entry{
		ID:         r.ID,
		AlertID:    r.AlertID,
		Timestamp:  r.Timestamp.UTC(),
		Action:     r.Action,
		Reason:     r.Reason,
		Confidence: r.Confidence,
		Alert:      r.Alert.Clone(),
		Degraded:   r.Degraded,
	}
	if len(r.Evidence) > 0 {
		e.Evidence = map[string]any(r.Evidence)
	}
	return e
}
