package api

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
)

// Nullable distinguishes an absent JSON field from an explicit null.
// Set reports whether the field was present; Valid whether it was not null.
type Nullable[T any] struct {
	Value T
	Set   bool
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// CreateTaskRequest defines the payload for creating a task.
type CreateTaskRequest struct {
	Title             string     `json:"title"               validate:"required,max=200"`
	Description       *string    `json:"description"         validate:"omitempty,max=1000"`
	Priority          string     `json:"priority"`
	Tags              []string   `json:"tags"                validate:"max=20,dive,max=50"`
	DueDate           *time.Time `json:"due_date"`
	IsRecurring       bool       `json:"is_recurring"`
	RecurrencePattern *string    `json:"recurrence_pattern"`
	RecurrenceEndDate *time.Time `json:"recurrence_end_date"`
}

// ToParams converts the request into domain parameters.
func (req *CreateTaskRequest) ToParams() (domain.NewTaskParams, error) {
	params := domain.NewTaskParams{
		Title:             req.Title,
		Description:       req.Description,
		Tags:              req.Tags,
		DueDate:           req.DueDate,
		IsRecurring:       req.IsRecurring,
		RecurrenceEndDate: req.RecurrenceEndDate,
	}

	if strings.TrimSpace(req.Priority) != "" {
		p, err := domain.ParsePriority(req.Priority)
		if err != nil {
			return domain.NewTaskParams{}, err
		}
		params.Priority = p
	}

	if req.RecurrencePattern != nil && strings.TrimSpace(*req.RecurrencePattern) != "" {
		p, err := domain.ParseRecurrencePattern(*req.RecurrencePattern)
		if err != nil {
			return domain.NewTaskParams{}, err
		}
		params.RecurrencePattern = &p
	}

	return params, nil
}

// UpdateTaskRequest defines the payload for a partial task update. Absent
// fields are left unchanged. Description, due_date and recurrence_end_date
// may be set to null to clear them.
type UpdateTaskRequest struct {
	Title             *string             `json:"title"               validate:"omitempty,max=200"`
	Description       Nullable[string]    `json:"description"`
	Completed         *bool               `json:"completed"`
	Priority          *string             `json:"priority"`
	Tags              *[]string           `json:"tags"                validate:"omitempty,max=20,dive,max=50"`
	DueDate           Nullable[time.Time] `json:"due_date"`
	IsRecurring       *bool               `json:"is_recurring"`
	RecurrencePattern *string             `json:"recurrence_pattern"`
	RecurrenceEndDate Nullable[time.Time] `json:"recurrence_end_date"`
}

// ToUpdate converts the request into a domain update.
func (req *UpdateTaskRequest) ToUpdate() (domain.TaskUpdate, error) {
	update := domain.TaskUpdate{
		Title:       req.Title,
		Completed:   req.Completed,
		Tags:        req.Tags,
		IsRecurring: req.IsRecurring,
	}

	if req.Description.Set {
		if req.Description.Valid {
			update.Description = &req.Description.Value
		} else {
			update.ClearDescription = true
		}
	}
	if req.DueDate.Set {
		if req.DueDate.Valid {
			update.DueDate = &req.DueDate.Value
		} else {
			update.ClearDueDate = true
		}
	}
	if req.RecurrenceEndDate.Set {
		if req.RecurrenceEndDate.Valid {
			update.RecurrenceEndDate = &req.RecurrenceEndDate.Value
		} else {
			update.ClearRecurrenceEndDate = true
		}
	}

	if req.Priority != nil {
		p, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return domain.TaskUpdate{}, err
		}
		update.Priority = &p
	}
	if req.RecurrencePattern != nil {
		p, err := domain.ParseRecurrencePattern(*req.RecurrencePattern)
		if err != nil {
			return domain.TaskUpdate{}, err
		}
		update.RecurrencePattern = &p
	}

	return update, nil
}

// TaskResponse represents the response data for a task
type TaskResponse struct {
	ID                int64      `json:"id"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title"`
	Description       *string    `json:"description"`
	Completed         bool       `json:"completed"`
	Priority          string     `json:"priority"`
	Tags              []string   `json:"tags"`
	DueDate           *time.Time `json:"due_date"`
	IsRecurring       bool       `json:"is_recurring"`
	RecurrencePattern *string    `json:"recurrence_pattern"`
	RecurrenceEndDate *time.Time `json:"recurrence_end_date"`
	ParentTaskID      *int64     `json:"parent_task_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TaskListResponse wraps a list of tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Count int            `json:"count"`
}

// StopRecurrenceResponse reports the outcome of stopping a recurrence.
type StopRecurrenceResponse struct {
	Stopped bool         `json:"stopped"`
	Task    TaskResponse `json:"task"`
}

func taskToResponse(task *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:                task.ID,
		UserID:            task.UserID,
		Title:             task.Title,
		Description:       task.Description,
		Completed:         task.Completed,
		Priority:          string(task.Priority),
		Tags:              task.Tags,
		DueDate:           task.DueDate,
		IsRecurring:       task.IsRecurring,
		RecurrenceEndDate: task.RecurrenceEndDate,
		ParentTaskID:      task.ParentTaskID,
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if task.RecurrencePattern != nil {
		p := string(*task.RecurrencePattern)
		resp.RecurrencePattern = &p
	}
	return resp
}

func tasksToListResponse(tasks []*domain.Task) TaskListResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskToResponse(task))
	}
	return TaskListResponse{Tasks: out, Count: len(out)}
}

// filterFromQuery builds a task filter from list query parameters:
// status, priority, tag, search, sort_by and order (asc or desc).
func filterFromQuery(userID string, q url.Values) (domain.TaskFilter, error) {
	filter := domain.TaskFilter{
		UserID: userID,
		Status: domain.TaskStatusFilter(strings.ToLower(q.Get("status"))),
		Tag:    q.Get("tag"),
		Search: q.Get("search"),
		SortBy: domain.TaskSortField(strings.ToLower(q.Get("sort_by"))),
	}

	if raw := q.Get("priority"); raw != "" {
		p, err := domain.ParsePriority(raw)
		if err != nil {
			return domain.TaskFilter{}, err
		}
		filter.Priority = &p
	}

	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
		filter.Desc = true
	case "asc":
		filter.Desc = false
	default:
		return domain.TaskFilter{}, domain.NewValidationError("order", "must be asc or desc", domain.ErrValidation)
	}

	return filter, nil
}
