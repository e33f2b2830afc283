package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/redact"
	"github.com/phrazzld/cadence-api/internal/store"
)

const tasksTable = "tasks"

var taskColumns = []string{
	"id",
	"user_id",
	"title",
	"description",
	"completed",
	"priority",
	"tags",
	"due_date",
	"is_recurring",
	"recurrence_pattern",
	"recurrence_end_date",
	"parent_task_id",
	"created_at",
	"updated_at",
}

// priorityRank orders priorities so that ascending means low before high.
const priorityRank = "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END"

// taskRow is the database representation of a task.
type taskRow struct {
	ID                int64          `db:"id"`
	UserID            string         `db:"user_id"`
	Title             string         `db:"title"`
	Description       sql.NullString `db:"description"`
	Completed         bool           `db:"completed"`
	Priority          string         `db:"priority"`
	Tags              pq.StringArray `db:"tags"`
	DueDate           sql.NullTime   `db:"due_date"`
	IsRecurring       bool           `db:"is_recurring"`
	RecurrencePattern sql.NullString `db:"recurrence_pattern"`
	RecurrenceEndDate sql.NullTime   `db:"recurrence_end_date"`
	ParentTaskID      sql.NullInt64  `db:"parent_task_id"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func newTaskRow(t *domain.Task) taskRow {
	row := taskRow{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		Tags:        pq.StringArray(append([]string{}, t.Tags...)),
		IsRecurring: t.IsRecurring,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Description != nil {
		row.Description = sql.NullString{String: *t.Description, Valid: true}
	}
	if t.DueDate != nil {
		row.DueDate = sql.NullTime{Time: *t.DueDate, Valid: true}
	}
	if t.RecurrencePattern != nil {
		row.RecurrencePattern = sql.NullString{String: string(*t.RecurrencePattern), Valid: true}
	}
	if t.RecurrenceEndDate != nil {
		row.RecurrenceEndDate = sql.NullTime{Time: *t.RecurrenceEndDate, Valid: true}
	}
	if t.ParentTaskID != nil {
		row.ParentTaskID = sql.NullInt64{Int64: *t.ParentTaskID, Valid: true}
	}
	return row
}

func (r taskRow) toDomain() *domain.Task {
	t := &domain.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Completed:   r.Completed,
		Priority:    domain.Priority(r.Priority),
		IsRecurring: r.IsRecurring,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if len(r.Tags) > 0 {
		t.Tags = []string(r.Tags)
	}
	if r.Description.Valid {
		d := r.Description.String
		t.Description = &d
	}
	if r.DueDate.Valid {
		d := r.DueDate.Time.UTC()
		t.DueDate = &d
	}
	if r.RecurrencePattern.Valid {
		p := domain.RecurrencePattern(r.RecurrencePattern.String)
		t.RecurrencePattern = &p
	}
	if r.RecurrenceEndDate.Valid {
		e := r.RecurrenceEndDate.Time.UTC()
		t.RecurrenceEndDate = &e
	}
	if r.ParentTaskID.Valid {
		id := r.ParentTaskID.Int64
		t.ParentTaskID = &id
	}
	return t
}

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	conn   *sqlx.DB // nil when the store is bound to a transaction
	logger *slog.Logger
	sb     sq.StatementBuilderType
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db *sqlx.DB, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		conn:   db,
		logger: logger.With(slog.String("component", "task_store")),
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

func (s *PostgresTaskStore) withTx(tx *sqlx.Tx) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
		sb:     s.sb,
	}
}

// Create implements store.TaskStore.Create.
// Duplicate instances are detected through the partial unique index on
// (parent_task_id, due_date); ON CONFLICT DO NOTHING turns them into an
// empty result instead of an aborted transaction.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", task.UserID))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	row := newTaskRow(task)
	query, args, err := s.sb.Insert(tasksTable).
		Columns(taskColumns[1:]...).
		Values(
			row.UserID,
			row.Title,
			row.Description,
			row.Completed,
			row.Priority,
			row.Tags,
			row.DueDate,
			row.IsRecurring,
			row.RecurrencePattern,
			row.RecurrenceEndDate,
			row.ParentTaskID,
			row.CreatedAt,
			row.UpdatedAt,
		).
		Suffix("ON CONFLICT DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("duplicate recurring instance skipped",
				slog.Any("parent_task_id", task.ParentTaskID),
				slog.Any("due_date", task.DueDate))
			return store.ErrDuplicateInstance
		}
		log.Error("failed to create task",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", task.UserID))
		return store.NewStoreError("task", "create", "insert failed", MapError(err))
	}

	task.ID = id
	log.Debug("task created",
		slog.Int64("task_id", id),
		slog.String("user_id", task.UserID))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	return s.getOne(ctx, s.sb.Select(taskColumns...).From(tasksTable).Where(sq.Eq{"id": id}))
}

// GetByIDForUpdate implements store.TaskStore.GetByIDForUpdate
func (s *PostgresTaskStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Task, error) {
	return s.getOne(ctx, s.sb.Select(taskColumns...).
		From(tasksTable).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE"))
}

// GetForUser implements store.TaskStore.GetForUser
func (s *PostgresTaskStore) GetForUser(ctx context.Context, id int64, userID string) (*domain.Task, error) {
	return s.getOne(ctx, s.sb.Select(taskColumns...).
		From(tasksTable).
		Where(sq.Eq{"id": id, "user_id": userID}))
}

// FindInstance implements store.TaskStore.FindInstance
func (s *PostgresTaskStore) FindInstance(
	ctx context.Context,
	parentID int64,
	dueDate time.Time,
) (*domain.Task, error) {
	return s.getOne(ctx, s.sb.Select(taskColumns...).
		From(tasksTable).
		Where(sq.Eq{"parent_task_id": parentID, "due_date": dueDate.UTC()}).
		Limit(1))
}

func (s *PostgresTaskStore) getOne(ctx context.Context, b sq.SelectBuilder) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var row taskRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task", slog.String("error", redact.Error(err)))
		return nil, store.NewStoreError("task", "get", "select failed", MapError(err))
	}

	return row.toDomain(), nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	row := newTaskRow(task)
	query, args, err := s.sb.Update(tasksTable).
		SetMap(map[string]interface{}{
			"title":               row.Title,
			"description":         row.Description,
			"completed":           row.Completed,
			"priority":            row.Priority,
			"tags":                row.Tags,
			"due_date":            row.DueDate,
			"is_recurring":        row.IsRecurring,
			"recurrence_pattern":  row.RecurrencePattern,
			"recurrence_end_date": row.RecurrenceEndDate,
			"updated_at":          row.UpdatedAt,
		}).
		Where(sq.Eq{"id": task.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", redact.Error(err)),
			slog.Int64("task_id", task.ID))
		return store.NewStoreError("task", "update", "update failed", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Delete implements store.TaskStore.Delete
func (s *PostgresTaskStore) Delete(ctx context.Context, id int64, userID string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := s.sb.Delete(tasksTable).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", redact.Error(err)),
			slog.Int64("task_id", id))
		return store.NewStoreError("task", "delete", "delete failed", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// List implements store.TaskStore.List
func (s *PostgresTaskStore) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	b := s.sb.Select(taskColumns...).From(tasksTable).Where(sq.Eq{"user_id": filter.UserID})

	switch filter.Status {
	case domain.StatusActive, domain.StatusPending:
		b = b.Where(sq.Eq{"completed": false})
	case domain.StatusCompleted:
		b = b.Where(sq.Eq{"completed": true})
	}
	if filter.Priority != nil {
		b = b.Where(sq.Eq{"priority": string(*filter.Priority)})
	}
	if filter.Tag != "" {
		b = b.Where(sq.Expr(
			"EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE lower(tag) = lower(?))",
			filter.Tag,
		))
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		b = b.Where(sq.Expr("(title ILIKE ? OR description ILIKE ?)", pattern, pattern))
	}

	return s.selectMany(ctx, b.OrderBy(orderClauses(filter.SortBy, filter.Desc)...))
}

// ListByParent implements store.TaskStore.ListByParent
func (s *PostgresTaskStore) ListByParent(ctx context.Context, parentID int64) ([]*domain.Task, error) {
	return s.selectMany(ctx, s.sb.Select(taskColumns...).
		From(tasksTable).
		Where(sq.Eq{"parent_task_id": parentID}).
		OrderBy("due_date ASC NULLS LAST", "id ASC"))
}

// ListDueBetween implements store.TaskStore.ListDueBetween
func (s *PostgresTaskStore) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	return s.selectMany(ctx, s.sb.Select(taskColumns...).
		From(tasksTable).
		Where(sq.Eq{"completed": false}).
		Where(sq.Gt{"due_date": from.UTC()}).
		Where(sq.LtOrEq{"due_date": to.UTC()}).
		OrderBy("due_date ASC", "id ASC"))
}

func (s *PostgresTaskStore) selectMany(ctx context.Context, b sq.SelectBuilder) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		log.Error("failed to list tasks", slog.String("error", redact.Error(err)))
		return nil, store.NewStoreError("task", "list", "select failed", MapError(err))
	}

	tasks := make([]*domain.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toDomain())
	}
	return tasks, nil
}

// RunInTx implements store.TaskStore.RunInTx.
// A store already bound to a transaction runs fn in that transaction.
func (s *PostgresTaskStore) RunInTx(
	ctx context.Context,
	fn func(ctx context.Context, tx store.TaskStore) error,
) error {
	if s.conn == nil {
		return fn(ctx, s)
	}
	return store.RunInTransaction(ctx, s.conn, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, s.withTx(tx))
	})
}

func orderClauses(field domain.TaskSortField, desc bool) []string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	switch field {
	case domain.SortByDueDate:
		return []string{"due_date " + dir + " NULLS LAST", "id " + dir}
	case domain.SortByPriority:
		return []string{priorityRank + " " + dir, "id " + dir}
	case domain.SortByTitle:
		return []string{"lower(title) " + dir, "id " + dir}
	case domain.SortByUpdatedAt:
		return []string{"updated_at " + dir, "id " + dir}
	default:
		return []string{"created_at " + dir, "id " + dir}
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
