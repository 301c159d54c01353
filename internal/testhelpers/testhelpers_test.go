package testhelpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/detection"
)

func TestMemoryStore_QueryWindow(t *testing.T) {
	sev := alerts.SeveritySev2
	store := NewMemoryStore(
		NewAlertBuilder().WithID("in-late").CreatedBefore(time.Minute).Build(),
		NewAlertBuilder().WithID("in-early").CreatedBefore(4*time.Minute).Build(),
		NewAlertBuilder().WithID("at-end").Build(),
		NewAlertBuilder().WithID("before-start").CreatedBefore(10*time.Minute).Build(),
		NewAlertBuilder().WithID("other-sev").WithSeverity(alerts.SeveritySev1).CreatedBefore(time.Minute).Build(),
		NewAlertBuilder().WithID("other-host").WithHost("db-01").CreatedBefore(time.Minute).Build(),
	)

	got, err := store.Query(context.Background(), detection.Query{
		Host:     "web-01",
		Title:    "High CPU",
		Severity: &sev,
		From:     BaseTime.Add(-5 * time.Minute),
		To:       BaseTime,
	})
	AssertNoError(t, err, "Query")
	AssertEqual(t, 2, len(got), "matching alerts")
	if len(got) == 2 {
		AssertEqual(t, "in-early", got[0].IDString(), "oldest first")
		AssertEqual(t, "in-late", got[1].IDString(), "newest last")
	}
	AssertEqual(t, 1, len(store.Queries()), "recorded queries")
}

func TestMemoryStore_ResolvedOnlyAndErrors(t *testing.T) {
	store := NewMemoryStore(ResolvedHistory(5*time.Minute, 30*time.Minute)...)
	AssertNoError(t, store.Append(context.Background(), NewAlertBuilder().CreatedBefore(time.Hour).Build()), "Append")

	got, err := store.Query(context.Background(), detection.Query{
		Host:         "web-01",
		From:         BaseTime.Add(-7 * 24 * time.Hour),
		To:           BaseTime,
		ResolvedOnly: true,
	})
	AssertNoError(t, err, "Query")
	AssertEqual(t, 2, len(got), "resolved alerts")
	AssertEqual(t, 3, store.Len(), "stored alerts")

	store.QueryErr = errors.New("db down")
	if _, err := store.Query(context.Background(), detection.Query{Host: "web-01"}); err == nil {
		t.Error("Expected QueryErr to be returned")
	}
}

func TestFlappingHistory(t *testing.T) {
	history := FlappingHistory(4)
	AssertEqual(t, 4, len(history), "alerts")
	for i := 1; i < len(history); i++ {
		if *history[i].Status == *history[i-1].Status {
			t.Errorf("Expected status to alternate at %d", i)
		}
		if !history[i].CreatedAt.After(history[i-1].CreatedAt) {
			t.Errorf("Expected ascending creation times at %d", i)
		}
	}
	AssertContains(t, *history[0].Status, "firing", "first status")
	AssertEqual(t, BaseTime.Add(-6*time.Minute), history[len(history)-1].CreatedAt, "last alert outside duplicate window")
}
