package service

import (
	"context"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
)

// EventPublisher publishes task lifecycle facts. Implementations must not
// block the caller beyond a short bounded wait and must never fail the
// mutation that produced the fact; the returned bool only reports whether
// the event was accepted.
//
// *events.Publisher satisfies this interface.
type EventPublisher interface {
	TaskCreated(ctx context.Context, task *domain.Task) bool
	TaskUpdated(ctx context.Context, task *domain.Task, oldCompleted bool) bool
	TaskDeleted(ctx context.Context, taskID int64, userID string) bool
	Reminder(ctx context.Context, task *domain.Task, reminderTime time.Time) bool
}

// Option configures optional service behavior.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock used for timestamps and eligibility checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
