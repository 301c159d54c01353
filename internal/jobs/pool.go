package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/metrics"
	"github.com/akmatori/alertsieve/internal/utils"
	"github.com/akmatori/alertsieve/internal/workflow"
)

var (
	// ErrPoolClosed is returned by Submit once shutdown has started
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrQueueFull is returned by Submit when the queue is saturated
	ErrQueueFull = errors.New("worker pool queue full")
)

// Processor runs the pipeline for one alert
type Processor interface {
	Process(ctx context.Context, alert alerts.Alert) workflow.Record
}

// Pool runs pipelines on a fixed number of workers fed by a bounded queue
type Pool struct {
	processor Processor
	queue     chan alerts.Alert
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Int64
}

// NewPool starts workers goroutines reading from a queue of queueSize
func NewPool(processor Processor, workers, queueSize int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		processor: processor,
		queue:     make(chan alerts.Alert, queueSize),
		logger:    logger.With("component", "worker_pool"),
		stop:      make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "workers", workers, "queue_size", queueSize)
	return p
}

// Submit enqueues an alert without blocking
func (p *Pool) Submit(alert alerts.Alert) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- alert:
		metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued alerts not yet picked up
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Dropped returns the number of queued alerts discarded undecided by a late shutdown
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Shutdown stops intake and waits for queued and in-flight alerts.
// If ctx expires first, alerts still queued are dropped without a decision,
// pipelines already running finish, and ctx.Err() is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool drained")
		return nil
	case <-ctx.Done():
		p.stopOnce.Do(func() { close(p.stop) })
		<-done
		p.logger.Warn("worker pool shutdown deadline exceeded, queued alerts dropped", "dropped", p.Dropped())
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for alert := range p.queue {
		metrics.SetQueueDepth(len(p.queue))
		select {
		case <-p.stop:
			p.drop(id, alert)
		default:
			p.run(id, alert)
		}
	}
}

// drop discards an alert that was accepted but never started
func (p *Pool) drop(id int, alert alerts.Alert) {
	p.dropped.Add(1)
	metrics.ObserveDropped()
	p.logger.Warn("alert dropped at shutdown", "worker", id, "alert_id", alert.IDString(), "host", alert.Host)
}

func (p *Pool) run(id int, alert alerts.Alert) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panicked", "worker", id, "alert_id", alert.IDString(), "panic", fmt.Sprint(r))
		}
	}()

	rec := p.processor.Process(context.Background(), alert)
	p.logger.Debug("alert processed",
		"worker", id,
		"alert_id", rec.Alert.IDString(),
		"action", rec.Decision.Action,
		"reason", rec.Decision.Reason,
		"duration", utils.FormatDuration(rec.Duration),
	)
}
