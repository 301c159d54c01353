// Package notify delivers forwarded alerts to human-facing channels.
package notify

import (
	"context"
	"fmt"

	"github.com/akmatori/alertsieve/internal/utils"
)

// MaxTextLength caps a notification body below Slack's message limit
const MaxTextLength = 3000

// SkipNoDestination is the skip note returned when no channel is configured
const SkipNoDestination = "no webhook set"

// Payload is the message handed to a notifier for a forwarded alert
type Payload struct {
	Decision string `json:"decision"`
	AlertID  string `json:"alert_id"`
	Reason   string `json:"reason"`
}

// Text renders the one-line notification body
func (p Payload) Text() string {
	return utils.TruncateText(fmt.Sprintf("%s | %s | %s", p.Decision, p.AlertID, p.Reason), MaxTextLength)
}

// Result reports what happened to one notification.
// Exactly one of Delivered, Skipped or Error is set.
type Result struct {
	Delivered bool   `json:"delivered"`
	Skipped   string `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// Notifier sends a payload somewhere. Failures are reported in the Result, never returned.
type Notifier interface {
	Notify(ctx context.Context, payload Payload) Result
}

// NotifyError wraps a failed delivery
type NotifyError struct {
	Op  string
	Err error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Op, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

func failed(op string, err error) Result {
	nerr := &NotifyError{Op: op, Err: err}
	return Result{Error: nerr.Error(), Err: nerr}
}

// Nop skips every notification. Used when notifications are switched off entirely.
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(ctx context.Context, payload Payload) Result {
	return Result{Skipped: SkipNoDestination}
}
