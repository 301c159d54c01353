package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/akmatori/alertsieve/internal/notify"
	"github.com/akmatori/alertsieve/internal/services"
	"github.com/akmatori/alertsieve/internal/utils"
)

// DefaultDigestSchedule posts the digest every day at 09:00
const DefaultDigestSchedule = "0 9 * * *"

// SummarySource produces the digest content
type SummarySource interface {
	SummaryForLast(ctx context.Context, window time.Duration) (services.Summary, error)
}

// TextPoster delivers the rendered digest
type TextPoster interface {
	PostText(ctx context.Context, text string) notify.Result
}

// Digest posts a noise-reduction summary on a cron schedule
type Digest struct {
	summaries SummarySource
	poster    TextPoster
	window    time.Duration
	timeout   time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewDigest creates a digest covering the trailing window
func NewDigest(summaries SummarySource, poster TextPoster, window time.Duration, logger *slog.Logger) *Digest {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Digest{
		summaries: summaries,
		poster:    poster,
		window:    window,
		timeout:   30 * time.Second,
		logger:    logger.With("component", "digest"),
	}
}

// Start schedules the digest. An empty schedule disables it.
func (d *Digest) Start(schedule string) error {
	if schedule == "" {
		d.logger.Info("digest disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if _, err := d.Run(ctx); err != nil {
			d.logger.Error("digest failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", schedule, err)
	}

	d.cron = c
	c.Start()
	d.logger.Info("digest scheduled", "schedule", schedule, "window", utils.FormatDuration(d.window))
	return nil
}

// Stop halts the scheduler and waits for a running digest
func (d *Digest) Stop(ctx context.Context) {
	if d.cron == nil {
		return
	}
	select {
	case <-d.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Run builds and posts one digest immediately
func (d *Digest) Run(ctx context.Context) (notify.Result, error) {
	summary, err := d.summaries.SummaryForLast(ctx, d.window)
	if err != nil {
		return notify.Result{}, err
	}

	result := d.poster.PostText(ctx, summary.Text())
	switch {
	case result.Err != nil:
		return result, result.Err
	case result.Skipped != "":
		d.logger.Debug("digest not posted", "reason", result.Skipped)
	default:
		d.logger.Info("digest posted", "total", summary.Total, "suppressed", summary.Suppressed)
	}
	return result, nil
}
