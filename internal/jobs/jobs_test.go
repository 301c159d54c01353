package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/detection"
	"github.com/akmatori/alertsieve/internal/executor"
	"github.com/akmatori/alertsieve/internal/notify"
	"github.com/akmatori/alertsieve/internal/services"
	"github.com/akmatori/alertsieve/internal/testhelpers"
	"github.com/akmatori/alertsieve/internal/workflow"
)

type gatedProcessor struct {
	gate      chan struct{}
	started   chan struct{}
	processed int32
	panicOn   string
}

func newGatedProcessor() *gatedProcessor {
	return &gatedProcessor{gate: make(chan struct{}), started: make(chan struct{}, 100)}
}

func (p *gatedProcessor) Process(ctx context.Context, alert alerts.Alert) workflow.Record {
	p.started <- struct{}{}
	<-p.gate
	if p.panicOn != "" && alert.IDString() == p.panicOn {
		panic("boom")
	}
	atomic.AddInt32(&p.processed, 1)
	return workflow.Record{Alert: alert}
}

// slowStore delays every query to keep a pipeline in flight
type slowStore struct {
	*testhelpers.MemoryStore
	delay time.Duration
}

func (s slowStore) Query(ctx context.Context, q detection.Query) ([]alerts.Alert, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.MemoryStore.Query(ctx, q)
}

func TestPool_ProcessesAndDrains(t *testing.T) {
	proc := newGatedProcessor()
	pool := NewPool(proc, 2, 10, nil)

	for i := 0; i < 6; i++ {
		if err := pool.Submit(testhelpers.NewAlertBuilder().Build()); err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
	}

	close(proc.gate)
	testhelpers.MustCompleteWithin(t, 2*time.Second, func() {
		if err := pool.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown returned error: %v", err)
		}
	})

	if got := atomic.LoadInt32(&proc.processed); got != 6 {
		t.Errorf("Expected 6 processed alerts, got %d", got)
	}
}

func TestPool_QueueFull(t *testing.T) {
	proc := newGatedProcessor()
	pool := NewPool(proc, 1, 1, nil)
	defer func() {
		close(proc.gate)
		pool.Shutdown(context.Background())
	}()

	if err := pool.Submit(testhelpers.NewAlertBuilder().Build()); err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
	<-proc.started

	if err := pool.Submit(testhelpers.NewAlertBuilder().Build()); err != nil {
		t.Fatalf("second Submit returned error: %v", err)
	}
	if err := pool.Submit(testhelpers.NewAlertBuilder().Build()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if pool.Pending() != 1 {
		t.Errorf("Expected 1 pending alert, got %d", pool.Pending())
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	proc := newGatedProcessor()
	close(proc.gate)
	pool := NewPool(proc, 1, 1, nil)

	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if err := pool.Submit(testhelpers.NewAlertBuilder().Build()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
	if err := pool.Shutdown(context.Background()); err != nil {
		t.Errorf("Second Shutdown returned error: %v", err)
	}
}

func TestPool_ShutdownDeadlineDropsQueued(t *testing.T) {
	proc := newGatedProcessor()
	pool := NewPool(proc, 1, 4, nil)

	for _, id := range []string{"a-1", "a-2", "a-3"} {
		if err := pool.Submit(testhelpers.NewAlertBuilder().WithID(id).Build()); err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
	}
	<-proc.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- pool.Shutdown(ctx) }()

	<-pool.stop
	close(proc.gate)

	var err error
	testhelpers.MustCompleteWithin(t, 2*time.Second, func() { err = <-errCh })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if got := atomic.LoadInt32(&proc.processed); got != 1 {
		t.Errorf("Expected the in-flight alert to finish, got %d processed", got)
	}
	if pool.Dropped() != 2 {
		t.Errorf("Expected 2 dropped alerts, got %d", pool.Dropped())
	}
}

func TestPool_LateShutdownNeverForwardsDuplicates(t *testing.T) {
	store := slowStore{
		MemoryStore: testhelpers.NewMemoryStore(testhelpers.NewAlertBuilder().WithID("prior").CreatedBefore(time.Minute).Build()),
		delay:       30 * time.Millisecond,
	}
	notifier := testhelpers.NewRecordingNotifier()
	exec := executor.NewExecutor(executor.NewAuditLog(), notifier, nil, executor.WithHistory(store))
	orch := workflow.NewOrchestrator(store, nil, exec, config.DefaultSettings(), time.Second, nil)
	pool := NewPool(orch, 1, 10, nil)

	for i := 0; i < 5; i++ {
		testhelpers.AssertNoError(t, pool.Submit(testhelpers.NewAlertBuilder().WithID(fmt.Sprintf("dup-%d", i)).Build()), "Submit")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := pool.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}

	audit := exec.AuditLog()
	testhelpers.AssertEqual(t, 0, audit.Count(executor.ActionForwarded), "forwarded duplicates")
	testhelpers.AssertEqual(t, 0, len(notifier.Payloads()), "notifications")
	testhelpers.AssertEqual(t, int64(5), int64(audit.Count(executor.ActionSuppressed))+pool.Dropped(), "suppressed plus dropped")
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	proc := newGatedProcessor()
	proc.panicOn = "bad"
	close(proc.gate)
	pool := NewPool(proc, 1, 4, nil)

	pool.Submit(testhelpers.NewAlertBuilder().WithID("bad").Build())
	pool.Submit(testhelpers.NewAlertBuilder().WithID("good").Build())

	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if got := atomic.LoadInt32(&proc.processed); got != 1 {
		t.Errorf("Expected the alert after the panic to be processed, got %d", got)
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	proc := newGatedProcessor()
	proc.started = make(chan struct{}, 1000)
	close(proc.gate)
	pool := NewPool(proc, 4, 1000, nil)

	testhelpers.ConcurrentTest(t, 10, func(workerID int) {
		for i := 0; i < 50; i++ {
			if err := pool.Submit(testhelpers.NewAlertBuilder().Build()); err != nil {
				t.Errorf("Submit returned error: %v", err)
			}
		}
	})

	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if got := atomic.LoadInt32(&proc.processed); got != 500 {
		t.Errorf("Expected 500 processed, got %d", got)
	}
}

type staticSummaries struct {
	summary services.Summary
	err     error
	window  time.Duration
}

func (s *staticSummaries) SummaryForLast(ctx context.Context, window time.Duration) (services.Summary, error) {
	s.window = window
	return s.summary, s.err
}

type recordingPoster struct {
	mu     sync.Mutex
	texts  []string
	result notify.Result
}

func (p *recordingPoster) PostText(ctx context.Context, text string) notify.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	return p.result
}

func TestDigest_Run(t *testing.T) {
	summaries := &staticSummaries{summary: services.Summary{
		Since: testhelpers.BaseTime, Total: 10, Suppressed: 7, Forwarded: 3,
		NoiseReductionPercent: 70, ByRule: map[string]int{"duplicate_alert": 7},
	}}
	poster := &recordingPoster{result: notify.Result{Delivered: true}}

	d := NewDigest(summaries, poster, 0, nil)
	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Delivered {
		t.Error("Expected digest delivered")
	}
	if summaries.window != 24*time.Hour {
		t.Errorf("Expected default 24h window, got %v", summaries.window)
	}
	if len(poster.texts) != 1 || !strings.Contains(poster.texts[0], "70.0%") {
		t.Errorf("Unexpected digest text %v", poster.texts)
	}
}

func TestDigest_RunErrors(t *testing.T) {
	d := NewDigest(&staticSummaries{err: errors.New("db down")}, &recordingPoster{}, time.Hour, nil)
	if _, err := d.Run(context.Background()); err == nil {
		t.Error("Expected summary error")
	}

	notifyErr := &notify.NotifyError{Op: "webhook", Err: errors.New("403")}
	poster := &recordingPoster{result: notify.Result{Error: notifyErr.Error(), Err: notifyErr}}
	d = NewDigest(&staticSummaries{}, poster, time.Hour, nil)
	if _, err := d.Run(context.Background()); !errors.As(err, &notifyErr) {
		t.Errorf("Expected NotifyError, got %v", err)
	}
}

func TestDigest_Schedule(t *testing.T) {
	d := NewDigest(&staticSummaries{}, &recordingPoster{}, time.Hour, nil)

	if err := d.Start("not a schedule"); err == nil {
		t.Error("Expected invalid schedule error")
	}
	if err := d.Start(""); err != nil {
		t.Errorf("Expected empty schedule to disable digest, got %v", err)
	}
	if err := d.Start(DefaultDigestSchedule); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Stop(ctx)
}
