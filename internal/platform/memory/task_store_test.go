package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func mustCreate(t *testing.T, s *TaskStore, userID string, params domain.NewTaskParams) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(userID, params, base)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), task))
	return task
}

func instanceOf(t *testing.T, parent *domain.Task, due time.Time) *domain.Task {
	t.Helper()
	child := parent.Clone()
	child.ID = 0
	child.DueDate = &due
	child.ParentTaskID = &parent.ID
	return child
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	t.Parallel()
	s := NewTaskStore(nil)
	ctx := context.Background()

	a := mustCreate(t, s, "alice", domain.NewTaskParams{Title: "one"})
	b := mustCreate(t, s, "alice", domain.NewTaskParams{Title: "two"})
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	got, err := s.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Title)

	// Returned tasks are copies.
	got.Title = "mutated"
	again, _ := s.GetByID(ctx, a.ID)
	assert.Equal(t, "one", again.Title)

	_, err = s.GetForUser(ctx, a.ID, "bob")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	_, err = s.GetByID(ctx, 404)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_InstanceUniqueness(t *testing.T) {
	t.Parallel()
	s := NewTaskStore(nil)
	ctx := context.Background()
	weekly := domain.RecurrenceWeekly

	parent := mustCreate(t, s, "alice", domain.NewTaskParams{
		Title: "standup", IsRecurring: true, RecurrencePattern: &weekly,
	})
	due := base.AddDate(0, 0, 7)

	require.NoError(t, s.Create(ctx, instanceOf(t, parent, due)))
	err := s.Create(ctx, instanceOf(t, parent, due))
	assert.ErrorIs(t, err, store.ErrDuplicateInstance)

	found, err := s.FindInstance(ctx, parent.ID, due)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, *found.ParentTaskID)

	_, err = s.FindInstance(ctx, parent.ID, due.Add(time.Hour))
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	orphan := instanceOf(t, parent, due)
	missing := int64(999)
	orphan.ParentTaskID = &missing
	assert.ErrorIs(t, s.Create(ctx, orphan), store.ErrInvalidEntity)
}

func TestTaskStore_UpdateKeepsImmutableFields(t *testing.T) {
	t.Parallel()
	s := NewTaskStore(nil)
	ctx := context.Background()

	task := mustCreate(t, s, "alice", domain.NewTaskParams{Title: "one"})
	task.Title = "renamed"
	task.UserID = "mallory"
	require.NoError(t, s.Update(ctx, task))

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "alice", got.UserID)

	ghost := task.Clone()
	ghost.ID = 77
	assert.ErrorIs(t, s.Update(ctx, ghost), store.ErrTaskNotFound)
}

func TestTaskStore_DeleteOrphansInstances(t *testing.T) {
	t.Parallel()
	s := NewTaskStore(nil)
	ctx := context.Background()
	daily := domain.RecurrenceDaily

	parent := mustCreate(t, s, "alice", domain.NewTaskParams{
		Title: "water", IsRecurring: true, RecurrencePattern: &daily,
	})
	child := instanceOf(t, parent, base.AddDate(0, 0, 1))
	require.NoError(t, s.Create(ctx, child))

	assert.ErrorIs(t, s.Delete(ctx, parent.ID, "bob"), store.ErrTaskNotFound)
	require.NoError(t, s.Delete(ctx, parent.ID, "alice"))

	got, err := s.GetByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentTaskID)
}

func TestTaskStore_ListFiltersAndSorts(t *testing.T) {
	t.Parallel()
	s := NewTaskStore(nil)
	ctx := context.Background()
	high := domain.PriorityHigh
	desc := "Quarterly REPORT draft"

	mustCreate(t, s, "alice", domain.NewTaskParams{Title: "b task", Priority: domain.PriorityLow, Tags: []string{"Work"}})
	mustCreate(t, s, "alice", domain.NewTaskParams{Title: "A task", Priority: high, Description: &desc})
	done := mustCreate(t, s, "alice", domain.NewTaskParams{Title: "c task", Priority: high})
	done.Completed = true
	require.NoError(t, s.Update(ctx, done))
	mustCreate(t, s, "bob", domain.NewTaskParams{Title: "bob's"})

	all, err := s.List(ctx, domain.TaskFilter{UserID: "alice", SortBy: domain.SortByTitle})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"A task", "b task", "c task"}, titles(all))

	active, err := s.List(ctx, domain.TaskFilter{UserID: "alice", Status: domain.StatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	byPriority, err := s.List(ctx, domain.TaskFilter{UserID: "alice", Priority: &high, Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, []string{"c task"}, titles(byPriority))

	tagged, err := s.List(ctx, domain.TaskFilter{UserID: "alice", Tag: "work"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b task"}, titles(tagged))

	searched, err := s.List(ctx, domain.TaskFilter{UserID: "alice", Search: "report"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A task"}, titles(searched))

	ranked, err := s.List(ctx, domain.TaskFilter{UserID: "alice", SortBy: domain.SortByPriority, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityLow, ranked[2].Priority)
}

func TestTaskStore_ListDueBetweenIsHalfOpen(t *testing.T) {
	t.Parallel()
	s := NewTaskStore(nil)
	ctx := context.Background()

	at := func(d time.Duration) *time.Time { v := base.Add(d); return &v }
	mustCreate(t, s, "alice", domain.NewTaskParams{Title: "edge-from", DueDate: at(0)})
	mustCreate(t, s, "alice", domain.NewTaskParams{Title: "inside", DueDate: at(5 * time.Minute)})
	mustCreate(t, s, "bob", domain.NewTaskParams{Title: "edge-to", DueDate: at(10 * time.Minute)})
	mustCreate(t, s, "bob", domain.NewTaskParams{Title: "outside", DueDate: at(11 * time.Minute)})
	mustCreate(t, s, "bob", domain.NewTaskParams{Title: "undated"})

	due, err := s.ListDueBetween(ctx, base, base.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"inside", "edge-to"}, titles(due))
}

func TestTaskStore_RunInTxRollsBack(t *testing.T) {
	t.Parallel()
	s := NewTaskStore(nil)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.TaskStore) error {
		task, _ := domain.NewTask("alice", domain.NewTaskParams{Title: "temp"}, base)
		require.NoError(t, tx.Create(ctx, task))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := s.List(ctx, domain.TaskFilter{UserID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTaskStore_RunInTxSerializes(t *testing.T) {
	t.Parallel()
	s := NewTaskStore(nil)
	ctx := context.Background()
	daily := domain.RecurrenceDaily
	parent := mustCreate(t, s, "alice", domain.NewTaskParams{
		Title: "water", IsRecurring: true, RecurrencePattern: &daily,
	})
	due := base.AddDate(0, 0, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RunInTx(ctx, func(ctx context.Context, tx store.TaskStore) error {
				if _, err := tx.FindInstance(ctx, parent.ID, due); err == nil {
					return nil
				}
				if err := tx.Create(ctx, instanceOf(t, parent, due)); err != nil {
					return err
				}
				mu.Lock()
				created++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	children, err := s.ListByParent(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func titles(tasks []*domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}
