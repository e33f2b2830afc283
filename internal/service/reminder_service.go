package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/store"
)

// ReminderService publishes reminder.due events for incomplete tasks that
// are about to become due. Consecutive scans cover adjacent, non-overlapping
// windows of due dates, so each task is announced once per due date.
type ReminderService struct {
	store     store.TaskStore
	publisher EventPublisher
	lead      time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	lastScan time.Time
}

// NewReminderService creates a ReminderService that announces tasks lead
// ahead of their due date.
func NewReminderService(
	taskStore store.TaskStore,
	publisher EventPublisher,
	lead time.Duration,
	logger *slog.Logger,
	opts ...Option,
) (*ReminderService, error) {
	if taskStore == nil {
		return nil, domain.NewValidationError("taskStore", "cannot be nil", domain.ErrValidation)
	}
	if publisher == nil {
		return nil, domain.NewValidationError("publisher", "cannot be nil", domain.ErrValidation)
	}
	if lead <= 0 {
		return nil, domain.NewValidationError("lead", "must be positive", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := applyOptions(opts)
	return &ReminderService{
		store:     taskStore,
		publisher: publisher,
		lead:      lead,
		logger:    logger.With(slog.String("component", "reminder_service")),
		now:       o.now,
	}, nil
}

// Scan publishes a reminder for every incomplete task whose due date falls
// in (previous scan + lead, now + lead]. The first scan covers (now, now + lead].
// It returns the number of reminders accepted by the publisher. A failed
// query leaves the window in place so the next scan retries it.
func (s *ReminderService) Scan(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	from := now
	if !s.lastScan.IsZero() {
		from = s.lastScan.Add(s.lead)
	}
	to := now.Add(s.lead)
	if !to.After(from) {
		return 0, nil
	}

	tasks, err := s.store.ListDueBetween(ctx, from, to)
	if err != nil {
		log.Error("failed to list due tasks", slog.String("error", err.Error()))
		return 0, fmt.Errorf("reminder scan: %w", err)
	}

	sent := 0
	for _, task := range tasks {
		reminderTime := task.DueDate.Add(-s.lead)
		if s.publisher.Reminder(ctx, task, reminderTime) {
			sent++
		}
	}
	s.lastScan = now

	if len(tasks) > 0 {
		log.Info("reminder scan completed",
			slog.Int("due_tasks", len(tasks)),
			slog.Int("published", sent),
			slog.Time("window_end", to))
	}
	return sent, nil
}
