package store

import (
	"context"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create validates and inserts a new task, assigning its ID.
	// Returns ErrDuplicateInstance when a task with the same parent and due
	// date already exists.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by ID regardless of owner.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// GetByIDForUpdate is GetByID that also locks the row until the
	// surrounding transaction ends. Outside RunInTx it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Task, error)

	// GetForUser retrieves a task owned by userID.
	// Returns ErrTaskNotFound if the task does not exist or belongs to someone else.
	GetForUser(ctx context.Context, id int64, userID string) (*domain.Task, error)

	// Update saves every mutable field of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task owned by userID.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id int64, userID string) error

	// List returns one user's tasks matching the filter.
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)

	// ListByParent returns the instances generated from parentID ordered by
	// due date, then ID.
	ListByParent(ctx context.Context, parentID int64) ([]*domain.Task, error)

	// FindInstance returns the instance of parentID due at dueDate.
	// Returns ErrTaskNotFound if there is none.
	FindInstance(ctx context.Context, parentID int64, dueDate time.Time) (*domain.Task, error)

	// ListDueBetween returns incomplete tasks of all users whose due date
	// falls in the half-open interval (from, to].
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error)

	// RunInTx executes fn with a TaskStore bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx TaskStore) error) error
}
