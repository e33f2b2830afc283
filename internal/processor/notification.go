package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
)

// defaultReminderBody is used when the task has no description.
const defaultReminderBody = "Task is due soon!"

// Notification is a message addressed to a user.
type Notification struct {
	UserID    string     `json:"user_id"`
	TaskID    int64      `json:"task_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
}

// Notifier delivers notifications to users.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. It stands in for
// push, email or websocket delivery.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "log_notifier")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	n.logger.InfoContext(ctx, "notification",
		"user_id", notification.UserID,
		"task_id", notification.TaskID,
		"title", notification.Title,
		"body", notification.Body,
		"type", notification.Type)
	return nil
}

// NotificationProcessor turns reminder events into notifications.
type NotificationProcessor struct {
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

var _ events.Handler = (*NotificationProcessor)(nil)

// NewNotificationProcessor creates a NotificationProcessor.
func NewNotificationProcessor(notifier Notifier, logger *slog.Logger) *NotificationProcessor {
	if notifier == nil {
		panic("notifier cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationProcessor{
		notifier: notifier,
		logger:   logger.With("component", "notification_processor"),
		now:      time.Now,
	}
}

// HandleMessage implements events.Handler.
func (p *NotificationProcessor) HandleMessage(ctx context.Context, msg *events.Message) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	event, err := events.DecodeReminderEvent(msg)
	if err != nil {
		log.Warn("discarding undecodable reminder", "error", err, "message_id", msg.ID)
		return err
	}

	log.Debug("received reminder", "task_id", event.TaskID, "user_id", event.UserID)
	return p.notifier.Notify(ctx, BuildReminderNotification(event, p.now()))
}

// BuildReminderNotification renders a reminder event as a notification.
func BuildReminderNotification(event *events.ReminderEvent, now time.Time) Notification {
	body := defaultReminderBody
	if event.Description != nil && *event.Description != "" {
		body = *event.Description
	}
	return Notification{
		UserID:    event.UserID,
		TaskID:    event.TaskID,
		Title:     "Reminder: " + event.Title,
		Body:      body,
		DueDate:   event.DueDate,
		Type:      "reminder",
		Timestamp: now.UTC(),
	}
}
