// Package recurrence decides whether a completed recurring task produces a
// next instance and computes that instance's due date. It performs no I/O.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
)

// Common errors
var (
	// ErrUnknownPattern is returned when a due date is requested for a pattern
	// the engine has no offset for. Reaching it means the eligibility check was
	// bypassed or the params are incomplete.
	ErrUnknownPattern = fmt.Errorf("%w: no offset configured", domain.ErrInvalidRecurrencePattern)

	ErrNilTask = errors.New("task cannot be nil")
)

// Engine defines the recurrence decisions used by the orchestrator.
type Engine interface {
	// ShouldCreateInstance reports whether task is eligible to spawn its next
	// instance at now. Ineligibility is not an error.
	ShouldCreateInstance(task *domain.Task, now time.Time) bool

	// NextDueDate returns from advanced by the offset of pattern.
	NextDueDate(pattern domain.RecurrencePattern, from time.Time) (time.Time, error)

	// NextInstance builds the unsaved next instance of parent, or returns
	// nil when no instance should be created.
	NextInstance(parent *domain.Task, now time.Time) (*domain.Task, error)
}

type defaultEngine struct {
	params *Params
}

// NewDefaultEngine creates an Engine with the default offsets.
func NewDefaultEngine() Engine {
	return &defaultEngine{params: NewDefaultParams()}
}

// NewEngineWithParams creates an Engine with custom offsets.
func NewEngineWithParams(params *Params) Engine {
	return &defaultEngine{params: params}
}

// ShouldCreateInstance implements Engine.
func (e *defaultEngine) ShouldCreateInstance(task *domain.Task, now time.Time) bool {
	if task == nil || !task.IsRecurring || task.RecurrencePattern == nil {
		return false
	}
	if !task.Completed {
		return false
	}
	if task.RecurrenceEndDate != nil && now.After(*task.RecurrenceEndDate) {
		return false
	}
	return true
}

// NextDueDate implements Engine.
func (e *defaultEngine) NextDueDate(pattern domain.RecurrencePattern, from time.Time) (time.Time, error) {
	offset, ok := e.params.Offsets[pattern]
	if !ok || offset <= 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}
	return from.Add(offset), nil
}

// NextInstance implements Engine.
//
// The end date is checked twice: loosely against now in ShouldCreateInstance,
// and precisely against the computed due date here, since the bound applies
// to the instance's due date.
func (e *defaultEngine) NextInstance(parent *domain.Task, now time.Time) (*domain.Task, error) {
	if parent == nil {
		return nil, ErrNilTask
	}
	if !e.ShouldCreateInstance(parent, now) {
		return nil, nil
	}

	base := now.UTC()
	if parent.DueDate != nil {
		base = *parent.DueDate
	}

	next, err := e.NextDueDate(*parent.RecurrencePattern, base)
	if err != nil {
		return nil, err
	}

	if parent.RecurrenceEndDate != nil && next.After(*parent.RecurrenceEndDate) {
		return nil, nil
	}

	return buildInstance(parent, next, now), nil
}

// buildInstance copies the parent's content and recurrence policy onto a new
// incomplete task due at due.
func buildInstance(parent *domain.Task, due time.Time, now time.Time) *domain.Task {
	src := parent.Clone()
	parentID := parent.ID
	dueUTC := due.UTC()

	return &domain.Task{
		UserID:            src.UserID,
		Title:             src.Title,
		Description:       src.Description,
		Completed:         false,
		Priority:          src.Priority,
		Tags:              src.Tags,
		DueDate:           &dueUTC,
		IsRecurring:       true,
		RecurrencePattern: src.RecurrencePattern,
		RecurrenceEndDate: src.RecurrenceEndDate,
		ParentTaskID:      &parentID,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}
}
