package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/store"
)

// TaskService provides the task operations exposed to authenticated users.
// Every mutation commits before its event is published, and a failure to
// publish or to generate a recurring instance never fails the mutation.
type TaskService interface {
	// Create validates and stores a new task for userID.
	Create(ctx context.Context, userID string, params domain.NewTaskParams) (*domain.Task, error)

	// Get returns one of the user's tasks.
	Get(ctx context.Context, userID string, id int64) (*domain.Task, error)

	// List returns the user's tasks that match filter. filter.UserID selects the user.
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)

	// Update applies a partial update. Completing a recurring task also
	// creates its next instance.
	Update(ctx context.Context, userID string, id int64, update domain.TaskUpdate) (*domain.Task, error)

	// Delete removes one of the user's tasks.
	Delete(ctx context.Context, userID string, id int64) error

	// StopRecurrence ends a task's recurrence. The bool reports whether
	// anything changed.
	StopRecurrence(ctx context.Context, userID string, id int64) (*domain.Task, bool, error)

	// Instances lists the instances generated from one of the user's tasks.
	Instances(ctx context.Context, userID string, id int64) ([]*domain.Task, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	store     store.TaskStore
	recurring RecurringTaskService
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	taskStore store.TaskStore,
	recurring RecurringTaskService,
	publisher EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) (TaskService, error) {
	if taskStore == nil {
		return nil, domain.NewValidationError("taskStore", "cannot be nil", domain.ErrValidation)
	}
	if recurring == nil {
		return nil, domain.NewValidationError("recurring", "cannot be nil", domain.ErrValidation)
	}
	if publisher == nil {
		return nil, domain.NewValidationError("publisher", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := applyOptions(opts)
	return &taskServiceImpl{
		store:     taskStore,
		recurring: recurring,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "task_service")),
		now:       o.now,
	}, nil
}

// Create implements TaskService.Create
func (s *taskServiceImpl) Create(
	ctx context.Context,
	userID string,
	params domain.NewTaskParams,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(userID, params, s.now())
	if err != nil {
		log.Debug("invalid task", slog.String("error", err.Error()))
		return nil, validationError(err)
	}

	if err := s.store.Create(ctx, task); err != nil {
		log.Error("failed to create task",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("create", "failed to save task", err)
	}

	log.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.String("user_id", userID))
	s.publisher.TaskCreated(ctx, task)
	return task, nil
}

// Get implements TaskService.Get
func (s *taskServiceImpl) Get(ctx context.Context, userID string, id int64) (*domain.Task, error) {
	task, err := s.store.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, s.mapStoreError("get", err)
	}
	return task, nil
}

// List implements TaskService.List
func (s *taskServiceImpl) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	if err := filter.Normalize(); err != nil {
		return nil, validationError(err)
	}

	tasks, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, NewTaskServiceError("list", "failed to list tasks", err)
	}
	return tasks, nil
}

// Update implements TaskService.Update.
// The update runs under the same row lock the recurring service takes, so
// an update and an instance generation for the same task never interleave.
func (s *taskServiceImpl) Update(
	ctx context.Context,
	userID string,
	id int64,
	update domain.TaskUpdate,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if update.IsEmpty() {
		return nil, ErrEmptyUpdate
	}

	var (
		updated      *domain.Task
		oldCompleted bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.TaskStore) error {
		task, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if task.UserID != userID {
			return store.ErrTaskNotFound
		}

		oldCompleted = task.Completed
		if err := task.ApplyUpdate(update, s.now()); err != nil {
			return validationError(err)
		}
		if err := tx.Update(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, s.mapStoreError("update", err)
	}

	log.Info("task updated",
		slog.Int64("task_id", updated.ID),
		slog.Bool("completed", updated.Completed),
		slog.Bool("old_completed", oldCompleted))
	s.publisher.TaskUpdated(ctx, updated, oldCompleted)

	if updated.Completed && !oldCompleted && updated.IsRecurring {
		if _, err := s.recurring.CreateNextInstance(ctx, updated); err != nil {
			// The update is committed; the recurring processor gets another chance.
			log.Error("failed to create next recurring instance",
				slog.Int64("task_id", updated.ID),
				slog.String("error", err.Error()))
		}
	}

	return updated, nil
}

// Delete implements TaskService.Delete
func (s *taskServiceImpl) Delete(ctx context.Context, userID string, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.store.Delete(ctx, id, userID); err != nil {
		return s.mapStoreError("delete", err)
	}

	log.Info("task deleted", slog.Int64("task_id", id), slog.String("user_id", userID))
	s.publisher.TaskDeleted(ctx, id, userID)
	return nil
}

// StopRecurrence implements TaskService.StopRecurrence
func (s *taskServiceImpl) StopRecurrence(
	ctx context.Context,
	userID string,
	id int64,
) (*domain.Task, bool, error) {
	task, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, false, err
	}

	stopped, err := s.recurring.StopRecurrence(ctx, task)
	if err != nil {
		return nil, false, err
	}
	return task, stopped, nil
}

// Instances implements TaskService.Instances
func (s *taskServiceImpl) Instances(ctx context.Context, userID string, id int64) ([]*domain.Task, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.recurring.GetRecurringInstances(ctx, id)
}

func (s *taskServiceImpl) mapStoreError(operation string, err error) error {
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	return NewTaskServiceError(operation, "store operation failed", err)
}
