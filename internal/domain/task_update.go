package domain

import (
	"strings"
	"time"
)

// TaskUpdate is a partial update of a task. Each non-nil field replaces the
// corresponding task field; nil fields are left untouched. Only the fields
// listed here are writable by callers.
//
// ClearDescription, ClearDueDate and ClearRecurrenceEndDate null the
// corresponding optional field and take precedence over a value supplied
// for the same field.
type TaskUpdate struct {
	Title             *string
	Description       *string
	Completed         *bool
	Priority          *Priority
	Tags              *[]string
	DueDate           *time.Time
	IsRecurring       *bool
	RecurrencePattern *RecurrencePattern
	RecurrenceEndDate *time.Time

	ClearDescription       bool
	ClearDueDate           bool
	ClearRecurrenceEndDate bool
}

// IsEmpty reports whether the update would change nothing.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil &&
		u.Priority == nil && u.Tags == nil && u.DueDate == nil &&
		u.IsRecurring == nil && u.RecurrencePattern == nil && u.RecurrenceEndDate == nil &&
		!u.ClearDescription && !u.ClearDueDate && !u.ClearRecurrenceEndDate
}

// ApplyUpdate applies u to a copy of the task and validates the result.
// On success the task is replaced by the updated copy and UpdatedAt is set
// to now. On failure the task is left unchanged.
func (t *Task) ApplyUpdate(u TaskUpdate, now time.Time) error {
	next := t.Clone()

	if u.Title != nil {
		next.Title = strings.TrimSpace(*u.Title)
	}
	if u.ClearDescription {
		next.Description = nil
	} else if u.Description != nil {
		d := *u.Description
		next.Description = &d
	}
	if u.Completed != nil {
		next.Completed = *u.Completed
	}
	if u.Priority != nil {
		next.Priority = *u.Priority
	}
	if u.Tags != nil {
		next.Tags = normalizeTags(*u.Tags)
	}
	if u.ClearDueDate {
		next.DueDate = nil
	} else if u.DueDate != nil {
		next.DueDate = utcPtr(u.DueDate)
	}
	if u.IsRecurring != nil {
		next.IsRecurring = *u.IsRecurring
	}
	if u.RecurrencePattern != nil {
		p := *u.RecurrencePattern
		next.RecurrencePattern = &p
	}
	if u.ClearRecurrenceEndDate {
		next.RecurrenceEndDate = nil
	} else if u.RecurrenceEndDate != nil {
		next.RecurrenceEndDate = utcPtr(u.RecurrenceEndDate)
	}

	if err := next.Validate(); err != nil {
		return err
	}

	next.UpdatedAt = now.UTC()
	*t = *next
	return nil
}
