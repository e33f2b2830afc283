package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/recurrence"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/store"
)

// RecurringTaskService materializes the next instance of completed
// recurring tasks. It is called inline by TaskService.Update and
// asynchronously by the recurring event processor; both may race on the
// same completion and at most one instance results.
type RecurringTaskService interface {
	// CreateNextInstance creates the next instance of parent if parent is
	// eligible. It returns nil and no error when no instance is due, when
	// the computed due date is past the recurrence end date, or when the
	// instance already exists.
	CreateNextInstance(ctx context.Context, parent *domain.Task) (*domain.Task, error)

	// GetRecurringInstances returns the instances generated from parentID
	// ordered by due date.
	GetRecurringInstances(ctx context.Context, parentID int64) ([]*domain.Task, error)

	// StopRecurrence ends the recurrence of task now. It returns false and
	// changes nothing when task is not recurring. On success task is updated
	// in place.
	StopRecurrence(ctx context.Context, task *domain.Task) (bool, error)
}

// recurringTaskServiceImpl implements the RecurringTaskService interface
type recurringTaskServiceImpl struct {
	store     store.TaskStore
	engine    recurrence.Engine
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewRecurringTaskService creates a new RecurringTaskService.
// It returns an error if any of the required dependencies are nil.
func NewRecurringTaskService(
	taskStore store.TaskStore,
	engine recurrence.Engine,
	publisher EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) (RecurringTaskService, error) {
	if taskStore == nil {
		return nil, domain.NewValidationError("taskStore", "cannot be nil", domain.ErrValidation)
	}
	if engine == nil {
		return nil, domain.NewValidationError("engine", "cannot be nil", domain.ErrValidation)
	}
	if publisher == nil {
		return nil, domain.NewValidationError("publisher", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := applyOptions(opts)
	return &recurringTaskServiceImpl{
		store:     taskStore,
		engine:    engine,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "recurring_task_service")),
		now:       o.now,
	}, nil
}

// CreateNextInstance implements RecurringTaskService.CreateNextInstance.
//
// Eligibility is checked twice: first on the caller's copy so that the
// common ineligible case needs no transaction, then on the locked row, which
// is the authoritative state. The row lock serializes concurrent triggers
// for the same parent; the existence check and the unique index on
// (parent_task_id, due_date) make the losers return nil. Parents without a
// due date are deduplicated by their open instance instead.
func (s *recurringTaskServiceImpl) CreateNextInstance(
	ctx context.Context,
	parent *domain.Task,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if parent == nil {
		return nil, recurrence.ErrNilTask
	}

	now := s.now()
	candidate, err := s.engine.NextInstance(parent, now)
	if err != nil {
		log.Error("failed to compute next instance",
			slog.Int64("task_id", parent.ID),
			slog.String("error", err.Error()))
		return nil, err
	}
	if candidate == nil {
		log.Debug("task not eligible for a next instance", slog.Int64("task_id", parent.ID))
		return nil, nil
	}

	var created *domain.Task
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.TaskStore) error {
		current, err := tx.GetByIDForUpdate(ctx, parent.ID)
		if err != nil {
			if errors.Is(err, store.ErrTaskNotFound) {
				log.Info("parent task no longer exists", slog.Int64("task_id", parent.ID))
				return nil
			}
			return err
		}

		next, err := s.engine.NextInstance(current, now)
		if err != nil {
			return err
		}
		if next == nil {
			log.Debug("locked task not eligible for a next instance", slog.Int64("task_id", current.ID))
			return nil
		}

		if current.DueDate == nil {
			// Without a due date the next due date depends on when each
			// trigger runs, so (parent, due date) cannot identify the
			// completion. An open instance means it has already been handled.
			open, err := openInstance(ctx, tx, current.ID)
			if err != nil {
				return err
			}
			if open != nil {
				log.Info("open instance already exists",
					slog.Int64("task_id", current.ID),
					slog.Int64("instance_id", open.ID))
				return nil
			}
		}

		existing, err := tx.FindInstance(ctx, current.ID, *next.DueDate)
		switch {
		case err == nil:
			log.Info("next instance already exists",
				slog.Int64("task_id", current.ID),
				slog.Int64("instance_id", existing.ID))
			return nil
		case !errors.Is(err, store.ErrTaskNotFound):
			return err
		}

		if err := tx.Create(ctx, next); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				log.Info("next instance created concurrently", slog.Int64("task_id", current.ID))
				return nil
			}
			return err
		}
		created = next
		return nil
	})
	if err != nil {
		log.Error("failed to create next instance",
			slog.Int64("task_id", parent.ID),
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("create_next_instance", "failed to persist instance", err)
	}
	if created == nil {
		return nil, nil
	}

	log.Info("created next recurring instance",
		slog.Int64("task_id", parent.ID),
		slog.Int64("instance_id", created.ID),
		slog.Time("due_date", *created.DueDate))
	s.publisher.TaskCreated(ctx, created)
	return created, nil
}

// GetRecurringInstances implements RecurringTaskService.GetRecurringInstances
func (s *recurringTaskServiceImpl) GetRecurringInstances(
	ctx context.Context,
	parentID int64,
) ([]*domain.Task, error) {
	instances, err := s.store.ListByParent(ctx, parentID)
	if err != nil {
		return nil, NewTaskServiceError("get_recurring_instances", "failed to list instances", err)
	}
	return instances, nil
}

// StopRecurrence implements RecurringTaskService.StopRecurrence.
//
// Only the recurrence end date is written. The row is reloaded under lock so
// that a completion committed after the caller loaded task is preserved.
func (s *recurringTaskServiceImpl) StopRecurrence(ctx context.Context, task *domain.Task) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if task == nil {
		return false, recurrence.ErrNilTask
	}
	if !task.IsRecurring {
		return false, nil
	}

	now := s.now()
	var (
		current  *domain.Task
		stopped  bool
		applyErr error
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.TaskStore) error {
		var err error
		current, err = tx.GetByIDForUpdate(ctx, task.ID)
		if err != nil {
			return err
		}
		if !current.IsRecurring {
			return nil
		}

		if applyErr = current.ApplyUpdate(domain.TaskUpdate{RecurrenceEndDate: &now}, now); applyErr != nil {
			return applyErr
		}
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		stopped = true
		return nil
	})
	switch {
	case applyErr != nil:
		return false, validationError(applyErr)
	case errors.Is(err, store.ErrTaskNotFound):
		return false, ErrTaskNotFound
	case err != nil:
		return false, NewTaskServiceError("stop_recurrence", "failed to save task", err)
	}

	*task = *current
	if !stopped {
		return false, nil
	}

	log.Info("recurrence stopped",
		slog.Int64("task_id", task.ID),
		slog.Time("recurrence_end_date", now))
	s.publisher.TaskUpdated(ctx, task, task.Completed)
	return true, nil
}

// openInstance returns an incomplete instance of parentID, or nil.
func openInstance(ctx context.Context, tx store.TaskStore, parentID int64) (*domain.Task, error) {
	instances, err := tx.ListByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	for _, instance := range instances {
		if !instance.Completed {
			return instance, nil
		}
	}
	return nil, nil
}
