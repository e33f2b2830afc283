package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/service"
	"github.com/phrazzld/cadence-api/internal/store"
)

// RecurringProcessor consumes task-events and creates the next instance of
// a recurring task when an update event reports its completion. The event
// is only a trigger; the task is reloaded before the orchestrator runs.
type RecurringProcessor struct {
	tasks     store.TaskStore
	recurring service.RecurringTaskService
	logger    *slog.Logger
}

var _ events.Handler = (*RecurringProcessor)(nil)

// NewRecurringProcessor creates a RecurringProcessor.
func NewRecurringProcessor(
	tasks store.TaskStore,
	recurring service.RecurringTaskService,
	logger *slog.Logger,
) *RecurringProcessor {
	if tasks == nil {
		panic("task store cannot be nil")
	}
	if recurring == nil {
		panic("recurring task service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurringProcessor{
		tasks:     tasks,
		recurring: recurring,
		logger:    logger.With("component", "recurring_processor"),
	}
}

// HandleMessage implements events.Handler.
// Events that are not completions of a recurring task are ignored. A task
// that no longer exists is not an error.
func (p *RecurringProcessor) HandleMessage(ctx context.Context, msg *events.Message) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	event, err := events.DecodeTaskEvent(msg)
	if err != nil {
		log.Warn("discarding undecodable task event", "error", err, "message_id", msg.ID)
		return err
	}

	log.Debug("received task event",
		"event_type", event.EventType,
		"task_id", event.TaskID,
		"event_id", event.ID)

	if !event.IsCompletion() {
		return nil
	}

	task, err := p.tasks.GetByID(ctx, event.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Info("completed task no longer exists", "task_id", event.TaskID)
			return nil
		}
		return fmt.Errorf("failed to load task %d: %w", event.TaskID, err)
	}

	next, err := p.recurring.CreateNextInstance(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to create next instance of task %d: %w", task.ID, err)
	}
	if next == nil {
		log.Info("no next instance created", "task_id", task.ID)
		return nil
	}

	log.Info("created next instance",
		"task_id", task.ID,
		"instance_id", next.ID,
		"due_date", next.DueDate)
	return nil
}
