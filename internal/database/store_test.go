package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/detection"
	"github.com/akmatori/alertsieve/internal/executor"
	"github.com/akmatori/alertsieve/internal/testhelpers"
)

func setupTestDB(t *testing.T) *AlertStore {
	t.Helper()
	db, err := Open(":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewAlertStore(db)
}

func TestAlertStore_QueryContract(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seed := []alerts.Alert{
		testhelpers.NewAlertBuilder().WithID("in-2").CreatedBefore(2 * time.Minute).Build(),
		testhelpers.NewAlertBuilder().WithID("in-1").CreatedBefore(4 * time.Minute).Build(),
		testhelpers.NewAlertBuilder().WithID("boundary-from").CreatedBefore(5 * time.Minute).Build(),
		testhelpers.NewAlertBuilder().WithID("too-old").CreatedBefore(6 * time.Minute).Build(),
		testhelpers.NewAlertBuilder().WithID("boundary-to").CreatedAt(testhelpers.BaseTime).Build(),
		testhelpers.NewAlertBuilder().WithID("other-host").WithHost("web-02").CreatedBefore(time.Minute).Build(),
		testhelpers.NewAlertBuilder().WithID("other-title").WithTitle("Disk full").CreatedBefore(time.Minute).Build(),
		testhelpers.NewAlertBuilder().WithID("other-sev").WithSeverity(alerts.SeveritySev1).CreatedBefore(time.Minute).Build(),
	}
	for _, a := range seed {
		if err := store.Append(ctx, a); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	sev := alerts.SeveritySev2
	got, err := store.Query(ctx, detection.Query{
		Host:     "web-01",
		Title:    "High CPU",
		Severity: &sev,
		From:     testhelpers.BaseTime.Add(-5 * time.Minute),
		To:       testhelpers.BaseTime,
	})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	want := []string{"boundary-from", "in-1", "in-2"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d alerts, got %d: %+v", len(want), len(got), got)
	}
	for i, a := range got {
		if a.IDString() != want[i] {
			t.Errorf("alert %d = %s, want %s", i, a.IDString(), want[i])
		}
	}
}

func TestAlertStore_AnyTitleAndSeverity(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for _, a := range []alerts.Alert{
		testhelpers.NewAlertBuilder().WithTitle("A").CreatedBefore(time.Hour).Build(),
		testhelpers.NewAlertBuilder().WithTitle("B").WithSeverity(alerts.SeveritySev1).CreatedBefore(2 * time.Hour).Build(),
	} {
		if err := store.Append(ctx, a); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	got, err := store.Query(ctx, detection.Query{
		Host: "web-01",
		From: testhelpers.BaseTime.Add(-24 * time.Hour),
		To:   testhelpers.BaseTime,
	})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(got) != 2 || got[0].Title != "B" {
		t.Errorf("Expected both alerts ascending, got %+v", got)
	}
}

func TestAlertStore_ResolvedOnlyRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	resolved := testhelpers.NewAlertBuilder().WithID("r").WithStatus("resolved").CreatedBefore(time.Hour).ResolvedAfter(90 * time.Second).Build()
	resolved.DecisionReason = alerts.StringPtr("self_resolving_alert")
	open := testhelpers.NewAlertBuilder().WithID("o").WithStatus("").CreatedBefore(2 * time.Hour).Build()

	for _, a := range []alerts.Alert{resolved, open} {
		if err := store.Append(ctx, a); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	got, err := store.Query(ctx, detection.Query{
		Host:         "web-01",
		Title:        "High CPU",
		From:         testhelpers.BaseTime.Add(-7 * 24 * time.Hour),
		To:           testhelpers.BaseTime,
		ResolvedOnly: true,
	})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 resolved alert, got %d", len(got))
	}

	a := got[0]
	if a.ResolvedAt == nil || a.ResolvedAt.Sub(a.CreatedAt) != 90*time.Second {
		t.Errorf("Resolution time not preserved: %+v", a)
	}
	if !a.CreatedAt.Equal(resolved.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, resolved.CreatedAt)
	}
	if a.DecisionReason == nil || *a.DecisionReason != "self_resolving_alert" {
		t.Error("Decision reason not preserved")
	}
	if a.StatusString() != "resolved" || a.Source != alerts.SourcePagerDuty {
		t.Errorf("Unexpected round trip %+v", a)
	}
}

func TestAlertStore_NilStatusPreserved(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.Append(ctx, testhelpers.NewAlertBuilder().WithStatus("").CreatedBefore(time.Minute).Build()); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	got, err := store.Query(ctx, detection.Query{Host: "web-01", From: testhelpers.BaseTime.Add(-time.Hour), To: testhelpers.BaseTime})
	if err != nil || len(got) != 1 {
		t.Fatalf("Query = %v, %v", got, err)
	}
	if got[0].Status != nil {
		t.Errorf("Expected nil status, got %q", *got[0].Status)
	}
}

func TestAlertStore_InjectionIsInert(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.Append(ctx, testhelpers.NewAlertBuilder().CreatedBefore(time.Minute).Build()); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	got, err := store.Query(ctx, detection.Query{
		Host: "web-01' OR '1'='1",
		From: testhelpers.BaseTime.Add(-time.Hour),
		To:   testhelpers.BaseTime,
	})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no rows for a quoted host, got %d", len(got))
	}

	n, err := store.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestAlertStore_ErrorsAreStoreErrors(t *testing.T) {
	store := setupTestDB(t)
	sqlDB, err := store.db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.Close()

	_, err = store.Query(context.Background(), detection.Query{Host: "web-01", To: testhelpers.BaseTime})
	var storeErr *detection.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected StoreError, got %v", err)
	}
}

func TestDetectorsOverSQLStore(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for _, a := range testhelpers.FlappingHistory(5) {
		if err := store.Append(ctx, a); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	detector := detection.NewFlappingDetector(store, time.Second, nil)
	result := detector.Detect(ctx, testhelpers.NewAlertBuilder().Build(), config.DefaultSettings())
	if !result.IsFlapping || result.Transitions != 4 {
		t.Errorf("Expected flapping over sqlite store, got %+v", result)
	}
}

func TestAuditStore_SaveAndList(t *testing.T) {
	alertStore := setupTestDB(t)
	audit := NewAuditStore(alertStore.db)
	ctx := context.Background()

	entries := []executor.Entry{
		{
			ID: "00000000-0000-0000-0000-000000000001", AlertID: "a1", Action: executor.ActionSuppressed,
			Reason: "duplicate_alert", Confidence: 1, Timestamp: testhelpers.BaseTime,
			Alert:    testhelpers.NewAlertBuilder().WithID("a1").Build(),
			Evidence: map[string]any{"duplicate": detection.DuplicateResult{IsDuplicate: true, DuplicateCount: 2}},
		},
		{
			ID: "00000000-0000-0000-0000-000000000002", AlertID: "a2", Action: executor.ActionForwarded,
			Reason: "default_forward_no_strong_suppress", Confidence: 0.5, Timestamp: testhelpers.BaseTime.Add(time.Minute),
			Alert:    testhelpers.NewAlertBuilder().WithID("a2").WithHost("db-01").Build(),
			Degraded: []string{"classify"},
		},
	}
	for _, e := range entries {
		if err := audit.SaveEntry(ctx, e); err != nil {
			t.Fatalf("SaveEntry returned error: %v", err)
		}
	}

	since, err := audit.ListSince(ctx, testhelpers.BaseTime)
	if err != nil {
		t.Fatalf("ListSince returned error: %v", err)
	}
	if len(since) != 2 || since[0].AlertID != "a1" {
		t.Fatalf("Expected oldest first, got %+v", since)
	}
	first := since[0]
	if first.Alert.Host != "web-01" || first.Alert.IDString() != "a1" {
		t.Errorf("Alert snapshot not preserved: %+v", first.Alert)
	}
	dup, ok := first.Evidence["duplicate"].(map[string]interface{})
	if !ok || dup["is_duplicate"] != true {
		t.Errorf("Evidence not preserved: %+v", first.Evidence)
	}

	forwarded, err := audit.List(ctx, executor.Filter{Action: executor.ActionForwarded})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(forwarded) != 1 || forwarded[0].Degraded[0] != "classify" {
		t.Errorf("Unexpected forwarded entries %+v", forwarded)
	}

	byHost, err := audit.List(ctx, executor.Filter{Host: "db-01", Limit: 5})
	if err != nil || len(byHost) != 1 {
		t.Errorf("Expected 1 entry for db-01, got %d (%v)", len(byHost), err)
	}

	if err := audit.SaveEntry(ctx, entries[0]); err == nil {
		t.Error("Expected duplicate entry id to be rejected")
	}
}

func TestJSONB_Scan(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		wantErr bool
		wantLen int
	}{
		{"nil", nil, false, 0},
		{"bytes", []byte(`{"a": 1}`), false, 1},
		{"string", `{"a": 1, "b": 2}`, false, 2},
		{"int", 5, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j JSONB
			err := j.Scan(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(j) != tt.wantLen {
				t.Errorf("Expected %d keys, got %d", tt.wantLen, len(j))
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	if ParseLogLevel("debug") != logger.Info || ParseLogLevel("ERROR") != logger.Error || ParseLogLevel("") != logger.Warn {
		t.Error("Unexpected gorm log level mapping")
	}
}
