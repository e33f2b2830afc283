package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Field limits for task content.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

// Priority is the relative importance of a task.
type Priority string

// Possible priority values
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// RecurrencePattern is the cadence on which a recurring task regenerates.
type RecurrencePattern string

// Possible recurrence patterns
const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
)

// Task validation errors
var (
	ErrEmptyTaskUserID           = errors.New("task user ID cannot be empty")
	ErrEmptyTaskTitle            = errors.New("task title cannot be empty")
	ErrTaskTitleTooLong          = fmt.Errorf("task title cannot exceed %d characters", MaxTitleLength)
	ErrTaskDescriptionTooLong    = fmt.Errorf("task description cannot exceed %d characters", MaxDescriptionLength)
	ErrRecurrencePatternRequired = errors.New("recurrence pattern is required for recurring tasks")
)

// Task is a unit of work owned by a single user.
//
// ParentTaskID is set on instances generated by the recurrence engine and
// points at the task whose completion produced them. It is a lookup-only
// reference; deleting the parent does not cascade to its instances.
type Task struct {
	ID                int64              `json:"id"`
	UserID            string             `json:"user_id"`
	Title             string             `json:"title"`
	Description       *string            `json:"description,omitempty"`
	Completed         bool               `json:"completed"`
	Priority          Priority           `json:"priority"`
	Tags              []string           `json:"tags,omitempty"`
	DueDate           *time.Time         `json:"due_date,omitempty"`
	IsRecurring       bool               `json:"is_recurring"`
	RecurrencePattern *RecurrencePattern `json:"recurrence_pattern,omitempty"`
	RecurrenceEndDate *time.Time         `json:"recurrence_end_date,omitempty"`
	ParentTaskID      *int64             `json:"parent_task_id,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewTaskParams holds the caller-supplied fields of a new task.
type NewTaskParams struct {
	Title             string
	Description       *string
	Priority          Priority
	Tags              []string
	DueDate           *time.Time
	IsRecurring       bool
	RecurrencePattern *RecurrencePattern
	RecurrenceEndDate *time.Time
}

// NewTask creates a new, not yet persisted Task for the given user.
// An empty priority defaults to medium. Returns an error if validation fails.
func NewTask(userID string, params NewTaskParams, now time.Time) (*Task, error) {
	priority := params.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	task := &Task{
		UserID:            userID,
		Title:             strings.TrimSpace(params.Title),
		Description:       params.Description,
		Priority:          priority,
		Tags:              normalizeTags(params.Tags),
		DueDate:           utcPtr(params.DueDate),
		IsRecurring:       params.IsRecurring,
		RecurrencePattern: params.RecurrencePattern,
		RecurrenceEndDate: utcPtr(params.RecurrenceEndDate),
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyTaskUserID
	}

	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTaskTitle
	}

	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return ErrTaskTitleTooLong
	}

	if t.Description != nil && utf8.RuneCountInString(*t.Description) > MaxDescriptionLength {
		return ErrTaskDescriptionTooLong
	}

	if !t.Priority.IsValid() {
		return ErrInvalidPriority
	}

	if t.RecurrencePattern != nil && !t.RecurrencePattern.IsValid() {
		return ErrInvalidRecurrencePattern
	}

	if t.IsRecurring && t.RecurrencePattern == nil {
		return ErrRecurrencePatternRequired
	}

	return nil
}

// HasTag reports whether the task carries the given tag, ignoring case.
func (t *Task) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.RecurrencePattern != nil {
		p := *t.RecurrencePattern
		c.RecurrencePattern = &p
	}
	if t.RecurrenceEndDate != nil {
		e := *t.RecurrenceEndDate
		c.RecurrenceEndDate = &e
	}
	if t.ParentTaskID != nil {
		id := *t.ParentTaskID
		c.ParentTaskID = &id
	}
	return &c
}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// ParsePriority converts a case-insensitive string into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return p, nil
}

// IsValid reports whether p is a known recurrence pattern.
func (p RecurrencePattern) IsValid() bool {
	switch p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// ParseRecurrencePattern converts a case-insensitive string into a RecurrencePattern.
func ParseRecurrencePattern(s string) (RecurrencePattern, error) {
	p := RecurrencePattern(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecurrencePattern, s)
	}
	return p, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
