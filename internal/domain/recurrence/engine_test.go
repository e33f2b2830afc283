package recurrence

import (
	"testing"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func pattern(p domain.RecurrencePattern) *domain.RecurrencePattern { return &p }

func timePtr(t time.Time) *time.Time { return &t }

func recurringTask(p domain.RecurrencePattern, completed bool) *domain.Task {
	desc := "notes"
	return &domain.Task{
		ID:                42,
		UserID:            "user-1",
		Title:             "Review budget",
		Description:       &desc,
		Priority:          domain.PriorityHigh,
		Tags:              []string{"finance", "home"},
		Completed:         completed,
		IsRecurring:       true,
		RecurrencePattern: pattern(p),
	}
}

func TestShouldCreateInstance(t *testing.T) {
	t.Parallel()
	engine := NewDefaultEngine()

	testCases := []struct {
		name     string
		task     *domain.Task
		expected bool
	}{
		{name: "nil task", task: nil, expected: false},
		{
			name:     "not recurring",
			task:     &domain.Task{Completed: true},
			expected: false,
		},
		{
			name: "recurring without pattern",
			task: &domain.Task{Completed: true, IsRecurring: true},
		},
		{
			name: "not completed",
			task: recurringTask(domain.RecurrenceDaily, false),
		},
		{
			name:     "completed without end date",
			task:     recurringTask(domain.RecurrenceDaily, true),
			expected: true,
		},
		{
			name: "end date in the past",
			task: func() *domain.Task {
				task := recurringTask(domain.RecurrenceDaily, true)
				task.RecurrenceEndDate = timePtr(now.Add(-time.Second))
				return task
			}(),
		},
		{
			name: "end date exactly now",
			task: func() *domain.Task {
				task := recurringTask(domain.RecurrenceDaily, true)
				task.RecurrenceEndDate = timePtr(now)
				return task
			}(),
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, engine.ShouldCreateInstance(tc.task, now))
		})
	}
}

func TestNextDueDate(t *testing.T) {
	t.Parallel()
	engine := NewDefaultEngine()
	from := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)

	testCases := []struct {
		pattern  domain.RecurrencePattern
		expected time.Time
	}{
		{domain.RecurrenceDaily, time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)},
		{domain.RecurrenceWeekly, time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC)},
		// fixed 30 days, not "same day next month"
		{domain.RecurrenceMonthly, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(string(tc.pattern), func(t *testing.T) {
			got, err := engine.NextDueDate(tc.pattern, from)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("unknown pattern fails", func(t *testing.T) {
		got, err := engine.NextDueDate("fortnightly", from)
		assert.ErrorIs(t, err, ErrUnknownPattern)
		assert.ErrorIs(t, err, domain.ErrInvalidRecurrencePattern)
		assert.True(t, got.IsZero())
	})

	t.Run("incomplete params fail loudly", func(t *testing.T) {
		partial := NewEngineWithParams(&Params{Offsets: map[domain.RecurrencePattern]time.Duration{
			domain.RecurrenceDaily: Day,
		}})
		_, err := partial.NextDueDate(domain.RecurrenceWeekly, from)
		assert.ErrorIs(t, err, ErrUnknownPattern)
	})
}

func TestNextInstance(t *testing.T) {
	t.Parallel()
	engine := NewDefaultEngine()
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("non recurring tasks never produce instances", func(t *testing.T) {
		for _, completed := range []bool{true, false} {
			task := &domain.Task{ID: 1, UserID: "u", Title: "x", Completed: completed}
			inst, err := engine.NextInstance(task, now)
			require.NoError(t, err)
			assert.Nil(t, inst)
		}
	})

	t.Run("incomplete recurring task produces nothing", func(t *testing.T) {
		inst, err := engine.NextInstance(recurringTask(domain.RecurrenceWeekly, false), now)
		require.NoError(t, err)
		assert.Nil(t, inst)
	})

	t.Run("offsets from due date", func(t *testing.T) {
		expected := map[domain.RecurrencePattern]time.Time{
			domain.RecurrenceDaily:   due.Add(24 * time.Hour),
			domain.RecurrenceWeekly:  due.Add(7 * 24 * time.Hour),
			domain.RecurrenceMonthly: due.Add(30 * 24 * time.Hour),
		}
		for p, want := range expected {
			parent := recurringTask(p, true)
			parent.DueDate = timePtr(due)

			inst, err := engine.NextInstance(parent, now)
			require.NoError(t, err)
			require.NotNil(t, inst, "pattern %s", p)

			assert.Equal(t, want, *inst.DueDate)
			require.NotNil(t, inst.ParentTaskID)
			assert.Equal(t, parent.ID, *inst.ParentTaskID)
			assert.False(t, inst.Completed)
			assert.True(t, inst.IsRecurring)
			assert.Equal(t, p, *inst.RecurrencePattern)
			assert.Equal(t, parent.Title, inst.Title)
			assert.Equal(t, *parent.Description, *inst.Description)
			assert.Equal(t, parent.Priority, inst.Priority)
			assert.Equal(t, parent.Tags, inst.Tags)
			assert.Equal(t, parent.UserID, inst.UserID)
			assert.Zero(t, inst.ID)
		}
	})

	t.Run("falls back to now without a due date", func(t *testing.T) {
		inst, err := engine.NextInstance(recurringTask(domain.RecurrenceDaily, true), now)
		require.NoError(t, err)
		require.NotNil(t, inst)
		assert.Equal(t, now.Add(24*time.Hour), *inst.DueDate)
	})

	t.Run("computed date past end date yields nothing", func(t *testing.T) {
		parent := recurringTask(domain.RecurrenceWeekly, true)
		parent.DueDate = timePtr(now)
		parent.RecurrenceEndDate = timePtr(now.Add(3 * 24 * time.Hour))

		inst, err := engine.NextInstance(parent, now)
		require.NoError(t, err)
		assert.Nil(t, inst)
	})

	t.Run("computed date equal to end date is allowed", func(t *testing.T) {
		parent := recurringTask(domain.RecurrenceDaily, true)
		parent.DueDate = timePtr(now)
		parent.RecurrenceEndDate = timePtr(now.Add(24 * time.Hour))

		inst, err := engine.NextInstance(parent, now)
		require.NoError(t, err)
		require.NotNil(t, inst)
		assert.Equal(t, *parent.RecurrenceEndDate, *inst.RecurrenceEndDate)
	})

	t.Run("instance does not alias parent slices", func(t *testing.T) {
		parent := recurringTask(domain.RecurrenceDaily, true)
		inst, err := engine.NextInstance(parent, now)
		require.NoError(t, err)
		inst.Tags[0] = "changed"
		assert.Equal(t, "finance", parent.Tags[0])
	})

	t.Run("nil parent", func(t *testing.T) {
		_, err := engine.NextInstance(nil, now)
		assert.ErrorIs(t, err, ErrNilTask)
	})
}
