package domain

import (
	"fmt"
	"strings"
)

// TaskStatusFilter narrows a task listing by completion state.
type TaskStatusFilter string

// Possible status filters. Pending is accepted as an alias of active.
const (
	StatusAll       TaskStatusFilter = "all"
	StatusActive    TaskStatusFilter = "active"
	StatusPending   TaskStatusFilter = "pending"
	StatusCompleted TaskStatusFilter = "completed"
)

// TaskSortField is a column a task listing can be ordered by.
type TaskSortField string

// Sortable fields
const (
	SortByCreatedAt TaskSortField = "created_at"
	SortByUpdatedAt TaskSortField = "updated_at"
	SortByDueDate   TaskSortField = "due_date"
	SortByPriority  TaskSortField = "priority"
	SortByTitle     TaskSortField = "title"
)

// TaskFilter describes a listing of one user's tasks.
type TaskFilter struct {
	UserID   string
	Status   TaskStatusFilter
	Priority *Priority
	Tag      string
	Search   string
	SortBy   TaskSortField
	Desc     bool
}

// Normalize fills defaults and rejects unknown status or sort values.
func (f *TaskFilter) Normalize() error {
	if f.Status == "" {
		f.Status = StatusAll
	}
	switch f.Status {
	case StatusAll, StatusActive, StatusPending, StatusCompleted:
	default:
		return fmt.Errorf("%w: unknown status filter %q", ErrValidation, f.Status)
	}

	if f.SortBy == "" {
		f.SortBy = SortByCreatedAt
	}
	switch f.SortBy {
	case SortByCreatedAt, SortByUpdatedAt, SortByDueDate, SortByPriority, SortByTitle:
	default:
		return fmt.Errorf("%w: unknown sort field %q", ErrValidation, f.SortBy)
	}

	f.Tag = strings.TrimSpace(f.Tag)
	f.Search = strings.TrimSpace(f.Search)
	return nil
}
