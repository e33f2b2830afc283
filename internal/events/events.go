package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
)

// Topics carried by the bus.
const (
	TopicTaskEvents = "task-events"
	TopicReminders  = "reminder-notifications"
)

// EventType identifies the kind of fact an event records.
type EventType string

// Known event types
const (
	EventTaskCreated EventType = "task.created"
	EventTaskUpdated EventType = "task.updated"
	EventTaskDeleted EventType = "task.deleted"
	EventReminderDue EventType = "reminder.due"
)

// ErrInvalidEvent is returned when a message body cannot be decoded into an event.
var ErrInvalidEvent = errors.New("invalid event")

// TaskEvent is a point-in-time projection of a task, published once per
// mutation on TopicTaskEvents. Consumers must treat it as a hint and load
// the authoritative task before acting on it.
//
// OldCompleted is only meaningful on task.updated events. Together with
// Completed it lets a consumer detect a completion without re-querying.
type TaskEvent struct {
	ID                uuid.UUID  `json:"id"`
	EventType         EventType  `json:"event_type"`
	TaskID            int64      `json:"task_id"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title,omitempty"`
	Completed         bool       `json:"completed"`
	OldCompleted      bool       `json:"old_completed"`
	IsRecurring       bool       `json:"is_recurring"`
	RecurrencePattern *string    `json:"recurrence_pattern"`
	ParentTaskID      *int64     `json:"parent_task_id"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	Timestamp         time.Time  `json:"timestamp"`
}

// EventOption adjusts a TaskEvent while it is being built.
type EventOption func(*TaskEvent)

// WithOldCompleted records the completion state the task had before the update.
func WithOldCompleted(old bool) EventOption {
	return func(e *TaskEvent) {
		e.OldCompleted = old
	}
}

// NewTaskEvent builds an event of the given type from the task's current
// field values.
func NewTaskEvent(eventType EventType, task *domain.Task, now time.Time, opts ...EventOption) *TaskEvent {
	e := &TaskEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		TaskID:      task.ID,
		UserID:      task.UserID,
		Title:       task.Title,
		Completed:   task.Completed,
		IsRecurring: task.IsRecurring,
		Timestamp:   now.UTC(),
	}
	if task.RecurrencePattern != nil {
		p := string(*task.RecurrencePattern)
		e.RecurrencePattern = &p
	}
	if task.ParentTaskID != nil {
		id := *task.ParentTaskID
		e.ParentTaskID = &id
	}
	if task.DueDate != nil {
		d := task.DueDate.UTC()
		e.DueDate = &d
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewTaskDeletedEvent builds a task.deleted event. Only the identity of the
// removed task is known at that point.
func NewTaskDeletedEvent(taskID int64, userID string, now time.Time) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.New(),
		EventType: EventTaskDeleted,
		TaskID:    taskID,
		UserID:    userID,
		Timestamp: now.UTC(),
	}
}

// IsCompletion reports whether the event records a recurring task moving
// from incomplete to complete.
func (e *TaskEvent) IsCompletion() bool {
	return e.EventType == EventTaskUpdated &&
		e.Completed &&
		!e.OldCompleted &&
		e.IsRecurring &&
		e.RecurrencePattern != nil && *e.RecurrencePattern != ""
}

// ReminderEvent announces that a task is about to become due. It is
// published on TopicReminders.
type ReminderEvent struct {
	ID           uuid.UUID  `json:"id"`
	EventType    EventType  `json:"event_type"`
	TaskID       int64      `json:"task_id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description"`
	DueDate      *time.Time `json:"due_date"`
	ReminderTime time.Time  `json:"reminder_time"`
	Timestamp    time.Time  `json:"timestamp"`
}

// NewReminderEvent builds a reminder.due event for the task.
func NewReminderEvent(task *domain.Task, reminderTime, now time.Time) *ReminderEvent {
	e := &ReminderEvent{
		ID:           uuid.New(),
		EventType:    EventReminderDue,
		TaskID:       task.ID,
		UserID:       task.UserID,
		Title:        task.Title,
		ReminderTime: reminderTime.UTC(),
		Timestamp:    now.UTC(),
	}
	if task.Description != nil {
		d := *task.Description
		e.Description = &d
	}
	if task.DueDate != nil {
		d := task.DueDate.UTC()
		e.DueDate = &d
	}
	return e
}

// DecodeTaskEvent unmarshals a message body into a TaskEvent.
func DecodeTaskEvent(msg *Message) (*TaskEvent, error) {
	var e TaskEvent
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if e.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrInvalidEvent)
	}
	return &e, nil
}

// DecodeReminderEvent unmarshals a message body into a ReminderEvent.
func DecodeReminderEvent(msg *Message) (*ReminderEvent, error) {
	var e ReminderEvent
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if e.EventType != EventReminderDue {
		return nil, fmt.Errorf("%w: unexpected event_type %q", ErrInvalidEvent, e.EventType)
	}
	return &e, nil
}
