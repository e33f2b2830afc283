package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recurringTask() *domain.Task {
	weekly := domain.RecurrenceWeekly
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	parent := int64(4)
	desc := "bring notes"
	return &domain.Task{
		ID:                12,
		UserID:            "user-1",
		Title:             "Team sync",
		Description:       &desc,
		Completed:         true,
		Priority:          domain.PriorityHigh,
		DueDate:           &due,
		IsRecurring:       true,
		RecurrencePattern: &weekly,
		ParentTaskID:      &parent,
	}
}

func TestNewTaskEvent(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.FixedZone("X", 7200))
	task := recurringTask()

	event := NewTaskEvent(EventTaskUpdated, task, now, WithOldCompleted(false))

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, EventTaskUpdated, event.EventType)
	assert.Equal(t, int64(12), event.TaskID)
	assert.Equal(t, "user-1", event.UserID)
	assert.True(t, event.Completed)
	assert.False(t, event.OldCompleted)
	require.NotNil(t, event.RecurrencePattern)
	assert.Equal(t, "weekly", *event.RecurrencePattern)
	require.NotNil(t, event.ParentTaskID)
	assert.Equal(t, int64(4), *event.ParentTaskID)
	assert.Equal(t, time.UTC, event.Timestamp.Location())

	// The event is a snapshot; later task mutations do not leak into it.
	*task.ParentTaskID = 99
	assert.Equal(t, int64(4), *event.ParentTaskID)
}

func TestTaskEventWireFormat(t *testing.T) {
	t.Parallel()
	event := NewTaskEvent(EventTaskUpdated, recurringTask(), time.Now(), WithOldCompleted(false))

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{
		"id", "event_type", "task_id", "user_id", "title", "completed", "old_completed",
		"is_recurring", "recurrence_pattern", "parent_task_id", "due_date", "timestamp",
	} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "task.updated", fields["event_type"])
	assert.Equal(t, "2026-01-01T00:00:00Z", fields["due_date"])
}

func TestIsCompletion(t *testing.T) {
	t.Parallel()
	weekly := "weekly"
	empty := ""

	base := TaskEvent{
		EventType:         EventTaskUpdated,
		Completed:         true,
		OldCompleted:      false,
		IsRecurring:       true,
		RecurrencePattern: &weekly,
	}

	tests := []struct {
		name   string
		mutate func(*TaskEvent)
		want   bool
	}{
		{name: "completion", mutate: func(*TaskEvent) {}, want: true},
		{name: "created event", mutate: func(e *TaskEvent) { e.EventType = EventTaskCreated }},
		{name: "not completed", mutate: func(e *TaskEvent) { e.Completed = false }},
		{name: "already completed", mutate: func(e *TaskEvent) { e.OldCompleted = true }},
		{name: "not recurring", mutate: func(e *TaskEvent) { e.IsRecurring = false }},
		{name: "no pattern", mutate: func(e *TaskEvent) { e.RecurrencePattern = nil }},
		{name: "empty pattern", mutate: func(e *TaskEvent) { e.RecurrencePattern = &empty }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.mutate(&e)
			assert.Equal(t, tt.want, e.IsCompletion())
		})
	}
}

func TestDecodeTaskEvent(t *testing.T) {
	t.Parallel()

	msg := &Message{Topic: TopicTaskEvents, Data: json.RawMessage(`{
		"event_type": "task.updated",
		"task_id": 7,
		"user_id": "u",
		"title": "Water plants",
		"completed": true,
		"old_completed": false,
		"is_recurring": true,
		"recurrence_pattern": "daily",
		"parent_task_id": null,
		"timestamp": "2026-01-01T08:00:00.123456"
	}`)}

	// Naive timestamps from other producers are not RFC 3339.
	_, err := DecodeTaskEvent(msg)
	assert.ErrorIs(t, err, ErrInvalidEvent)

	msg.Data = json.RawMessage(`{"event_type":"task.updated","task_id":7,"user_id":"u",
		"completed":true,"old_completed":false,"is_recurring":true,"recurrence_pattern":"daily",
		"timestamp":"2026-01-01T08:00:00Z"}`)
	event, err := DecodeTaskEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, int64(7), event.TaskID)
	assert.True(t, event.IsCompletion())
	assert.Nil(t, event.ParentTaskID)

	_, err = DecodeTaskEvent(&Message{Data: json.RawMessage(`{"task_id": 1}`)})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = DecodeTaskEvent(&Message{Data: json.RawMessage(`not json`)})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestReminderEventRoundTrip(t *testing.T) {
	t.Parallel()
	task := recurringTask()
	reminderAt := task.DueDate.Add(-15 * time.Minute)

	msg, err := NewMessage(TopicReminders, "r-1", NewReminderEvent(task, reminderAt, time.Now()))
	require.NoError(t, err)

	decoded, err := DecodeReminderEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, "Team sync", decoded.Title)
	require.NotNil(t, decoded.Description)
	assert.Equal(t, "bring notes", *decoded.Description)
	assert.True(t, decoded.ReminderTime.Equal(reminderAt))

	taskMsg, err := NewMessage(TopicTaskEvents, "t-1", NewTaskDeletedEvent(1, "u", time.Now()))
	require.NoError(t, err)
	_, err = DecodeReminderEvent(taskMsg)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}
