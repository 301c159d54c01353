package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/akmatori/alertsieve/internal/metrics"
)

// SlackConfig selects the Slack destination. WebhookURL wins over BotToken+Channel.
type SlackConfig struct {
	WebhookURL string
	BotToken   string
	Channel    string
	// APIURL overrides the Slack Web API base URL (tests)
	APIURL string

	MaxRetries    uint64
	RetryInterval time.Duration
	// RatePerSecond limits outgoing messages; 0 disables the limiter
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

// DefaultSlackConfig returns retry and rate settings that stay well inside Slack's limits
func DefaultSlackConfig() SlackConfig {
	return SlackConfig{
		MaxRetries:    3,
		RetryInterval: 500 * time.Millisecond,
		RatePerSecond: 1,
		Burst:         5,
	}
}

// SlackNotifier posts forwarded alerts to Slack
type SlackNotifier struct {
	cfg     SlackConfig
	client  *slack.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSlackNotifier builds a notifier. With neither a webhook nor a bot token every call is skipped.
func NewSlackNotifier(cfg SlackConfig, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}

	n := &SlackNotifier{cfg: cfg, logger: logger.With("component", "slack_notifier")}

	if cfg.WebhookURL == "" && cfg.BotToken != "" {
		options := []slack.Option{
			slack.OptionDebug(false),
			slack.OptionHTTPClient(cfg.HTTPClient),
		}
		if cfg.APIURL != "" {
			options = append(options, slack.OptionAPIURL(cfg.APIURL))
		}
		n.client = slack.New(cfg.BotToken, options...)
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return n
}

// Configured reports whether a destination is set
func (n *SlackNotifier) Configured() bool {
	return n.cfg.WebhookURL != "" || (n.client != nil && n.cfg.Channel != "")
}

// Notify posts "<decision> | <alert_id> | <reason>"
func (n *SlackNotifier) Notify(ctx context.Context, payload Payload) Result {
	result := n.PostText(ctx, payload.Text())
	switch {
	case result.Delivered:
		metrics.ObserveNotification(metrics.OutcomeSuccess)
	case result.Skipped != "":
		metrics.ObserveNotification(metrics.OutcomeSkipped)
	default:
		metrics.ObserveNotification(metrics.OutcomeError)
		n.logger.Warn("notification failed", "alert_id", payload.AlertID, "error", result.Err)
	}
	return result
}

// PostText sends arbitrary text to the configured destination
func (n *SlackNotifier) PostText(ctx context.Context, text string) Result {
	if !n.Configured() {
		return Result{Skipped: SkipNoDestination}
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return failed("rate_limit", err)
		}
	}

	op := "webhook"
	send := func() error {
		return slack.PostWebhookCustomHTTPContext(ctx, n.cfg.WebhookURL, n.cfg.HTTPClient, &slack.WebhookMessage{Text: text})
	}
	if n.cfg.WebhookURL == "" {
		op = "post_message"
		send = func() error {
			_, _, err := n.client.PostMessageContext(ctx, n.cfg.Channel, slack.MsgOptionText(text, false))
			return err
		}
	}

	if err := backoff.Retry(retryable(send), n.backoff(ctx)); err != nil {
		return failed(op, err)
	}
	return Result{Delivered: true}
}

func (n *SlackNotifier) backoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if n.cfg.RetryInterval > 0 {
		eb.InitialInterval = n.cfg.RetryInterval
	}
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, n.cfg.MaxRetries), ctx)
}

// retryable stops retrying on client errors other than rate limiting
func retryable(send func() error) backoff.Operation {
	return func() error {
		err := send()
		if err == nil {
			return nil
		}
		var statusErr slack.StatusCodeError
		if errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 && statusErr.Code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		var slackErr slack.SlackErrorResponse
		if errors.As(err, &slackErr) {
			return backoff.Permanent(err)
		}
		return err
	}
}
