package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/store"
)

type instanceKey struct {
	parentID int64
	due      int64
}

// TaskStore is an in-memory store.TaskStore. A single mutex serializes every
// operation; RunInTx holds it for the whole callback, which gives the same
// isolation a row lock gives in PostgreSQL.
type TaskStore struct {
	mu        sync.Mutex
	nextID    int64
	tasks     map[int64]*domain.Task
	instances map[instanceKey]int64
	logger    *slog.Logger
}

// NewTaskStore creates an empty in-memory task store.
func NewTaskStore(logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		tasks:     make(map[int64]*domain.Task),
		instances: make(map[instanceKey]int64),
		logger:    logger.With(slog.String("component", "memory_task_store")),
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

// Create implements store.TaskStore.Create
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(task)
}

// GetByID implements store.TaskStore.GetByID
func (s *TaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// GetByIDForUpdate implements store.TaskStore.GetByIDForUpdate
func (s *TaskStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Task, error) {
	return s.GetByID(ctx, id)
}

// GetForUser implements store.TaskStore.GetForUser
func (s *TaskStore) GetForUser(ctx context.Context, id int64, userID string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getForUser(id, userID)
}

// Update implements store.TaskStore.Update
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(task)
}

// Delete implements store.TaskStore.Delete
func (s *TaskStore) Delete(ctx context.Context, id int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delete(id, userID)
}

// List implements store.TaskStore.List
func (s *TaskStore) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(filter)
}

// ListByParent implements store.TaskStore.ListByParent
func (s *TaskStore) ListByParent(ctx context.Context, parentID int64) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listByParent(parentID), nil
}

// FindInstance implements store.TaskStore.FindInstance
func (s *TaskStore) FindInstance(ctx context.Context, parentID int64, dueDate time.Time) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findInstance(parentID, dueDate)
}

// ListDueBetween implements store.TaskStore.ListDueBetween
func (s *TaskStore) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listDueBetween(from, to), nil
}

// RunInTx implements store.TaskStore.RunInTx. The callback sees a view of
// the store that operates under the already held lock. Writes made by a
// failing callback are rolled back.
func (s *TaskStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.TaskStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(ctx, &txView{s: s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	nextID    int64
	tasks     map[int64]*domain.Task
	instances map[instanceKey]int64
}

func (s *TaskStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		nextID:    s.nextID,
		tasks:     make(map[int64]*domain.Task, len(s.tasks)),
		instances: make(map[instanceKey]int64, len(s.instances)),
	}
	for id, t := range s.tasks {
		snap.tasks[id] = t
	}
	for k, v := range s.instances {
		snap.instances[k] = v
	}
	return snap
}

func (s *TaskStore) restore(snap storeSnapshot) {
	s.nextID = snap.nextID
	s.tasks = snap.tasks
	s.instances = snap.instances
}

// The unexported methods below assume s.mu is held. Stored tasks are never
// mutated in place, so snapshots may share pointers.

func (s *TaskStore) create(task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	var key instanceKey
	keyed := task.ParentTaskID != nil && task.DueDate != nil
	if keyed {
		key = instanceKey{parentID: *task.ParentTaskID, due: task.DueDate.UnixNano()}
		if _, exists := s.instances[key]; exists {
			s.logger.Info("duplicate recurring instance skipped",
				slog.Int64("parent_task_id", key.parentID),
				slog.Time("due_date", *task.DueDate))
			return store.ErrDuplicateInstance
		}
	}
	if task.ParentTaskID != nil {
		if _, ok := s.tasks[*task.ParentTaskID]; !ok {
			return fmt.Errorf("%w: parent task %d does not exist", store.ErrInvalidEntity, *task.ParentTaskID)
		}
	}

	s.nextID++
	task.ID = s.nextID
	s.tasks[task.ID] = task.Clone()
	if keyed {
		s.instances[key] = task.ID
	}
	return nil
}

func (s *TaskStore) get(id int64) (*domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *TaskStore) getForUser(id int64, userID string) (*domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, store.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *TaskStore) update(task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	existing, ok := s.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}

	next := task.Clone()
	// Ownership, lineage and creation time are not writable.
	next.UserID = existing.UserID
	next.ParentTaskID = existing.ParentTaskID
	next.CreatedAt = existing.CreatedAt

	if next.ParentTaskID != nil {
		oldKey, newKey, changed := instanceKeys(existing, next)
		if changed {
			if newKey != nil {
				if _, taken := s.instances[*newKey]; taken {
					return store.ErrDuplicateInstance
				}
				s.instances[*newKey] = next.ID
			}
			if oldKey != nil {
				delete(s.instances, *oldKey)
			}
		}
	}

	s.tasks[next.ID] = next
	return nil
}

func instanceKeys(old, next *domain.Task) (oldKey, newKey *instanceKey, changed bool) {
	if old.DueDate != nil {
		oldKey = &instanceKey{parentID: *old.ParentTaskID, due: old.DueDate.UnixNano()}
	}
	if next.DueDate != nil {
		newKey = &instanceKey{parentID: *next.ParentTaskID, due: next.DueDate.UnixNano()}
	}
	switch {
	case oldKey == nil && newKey == nil:
		return nil, nil, false
	case oldKey != nil && newKey != nil:
		return oldKey, newKey, *oldKey != *newKey
	default:
		return oldKey, newKey, true
	}
}

func (s *TaskStore) delete(id int64, userID string) error {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return store.ErrTaskNotFound
	}
	if t.ParentTaskID != nil && t.DueDate != nil {
		delete(s.instances, instanceKey{parentID: *t.ParentTaskID, due: t.DueDate.UnixNano()})
	}
	delete(s.tasks, id)

	// Instances keep existing but lose their parent, like ON DELETE SET NULL.
	for childID, child := range s.tasks {
		if child.ParentTaskID != nil && *child.ParentTaskID == id {
			orphan := child.Clone()
			if orphan.DueDate != nil {
				delete(s.instances, instanceKey{parentID: id, due: orphan.DueDate.UnixNano()})
			}
			orphan.ParentTaskID = nil
			s.tasks[childID] = orphan
		}
	}
	return nil
}

func (s *TaskStore) list(filter domain.TaskFilter) ([]*domain.Task, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	search := strings.ToLower(filter.Search)
	out := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if t.UserID != filter.UserID {
			continue
		}
		switch filter.Status {
		case domain.StatusActive, domain.StatusPending:
			if t.Completed {
				continue
			}
		case domain.StatusCompleted:
			if !t.Completed {
				continue
			}
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.Tag != "" && !t.HasTag(filter.Tag) {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		out = append(out, t.Clone())
	}

	sortTasks(out, filter.SortBy, filter.Desc)
	return out, nil
}

func matchesSearch(t *domain.Task, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), needle)
}

func (s *TaskStore) listByParent(parentID int64) []*domain.Task {
	out := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == parentID {
			out = append(out, t.Clone())
		}
	}
	sortTasks(out, domain.SortByDueDate, false)
	return out
}

func (s *TaskStore) findInstance(parentID int64, due time.Time) (*domain.Task, error) {
	id, ok := s.instances[instanceKey{parentID: parentID, due: due.UnixNano()}]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return s.get(id)
}

func (s *TaskStore) listDueBetween(from, to time.Time) []*domain.Task {
	out := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if t.Completed || t.DueDate == nil {
			continue
		}
		if t.DueDate.After(from) && !t.DueDate.After(to) {
			out = append(out, t.Clone())
		}
	}
	sortTasks(out, domain.SortByDueDate, false)
	return out
}

var priorityRank = map[domain.Priority]int{
	domain.PriorityLow:    1,
	domain.PriorityMedium: 2,
	domain.PriorityHigh:   3,
}

// sortTasks mirrors the ORDER BY clauses of the PostgreSQL store: tasks
// without a due date sort last, and ID breaks ties in the same direction.
func sortTasks(tasks []*domain.Task, field domain.TaskSortField, desc bool) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		cmp := 0
		switch field {
		case domain.SortByDueDate:
			switch {
			case a.DueDate == nil && b.DueDate == nil:
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			default:
				cmp = a.DueDate.Compare(*b.DueDate)
			}
		case domain.SortByPriority:
			cmp = priorityRank[a.Priority] - priorityRank[b.Priority]
		case domain.SortByTitle:
			cmp = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case domain.SortByUpdatedAt:
			cmp = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if cmp == 0 {
			cmp = int(a.ID - b.ID)
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

// txView exposes the store to a RunInTx callback without re-acquiring the lock.
type txView struct {
	s *TaskStore
}

var _ store.TaskStore = (*txView)(nil)

func (v *txView) Create(_ context.Context, task *domain.Task) error { return v.s.create(task) }

func (v *txView) GetByID(_ context.Context, id int64) (*domain.Task, error) { return v.s.get(id) }

func (v *txView) GetByIDForUpdate(_ context.Context, id int64) (*domain.Task, error) {
	return v.s.get(id)
}

func (v *txView) GetForUser(_ context.Context, id int64, userID string) (*domain.Task, error) {
	return v.s.getForUser(id, userID)
}

func (v *txView) Update(_ context.Context, task *domain.Task) error { return v.s.update(task) }

func (v *txView) Delete(_ context.Context, id int64, userID string) error {
	return v.s.delete(id, userID)
}

func (v *txView) List(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	return v.s.list(filter)
}

func (v *txView) ListByParent(_ context.Context, parentID int64) ([]*domain.Task, error) {
	return v.s.listByParent(parentID), nil
}

func (v *txView) FindInstance(_ context.Context, parentID int64, due time.Time) (*domain.Task, error) {
	return v.s.findInstance(parentID, due)
}

func (v *txView) ListDueBetween(_ context.Context, from, to time.Time) ([]*domain.Task, error) {
	return v.s.listDueBetween(from, to), nil
}

func (v *txView) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.TaskStore) error) error {
	return fn(ctx, v)
}
