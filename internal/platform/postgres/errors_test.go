package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/cadence-api/internal/platform/postgres"
	"github.com/phrazzld/cadence-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "tasks",
		ColumnName:     "title",
		ConstraintName: constraint,
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "no rows", err: sql.ErrNoRows, expected: store.ErrNotFound},
		{
			name:     "instance unique violation",
			err:      newPgError("23505", "tasks_parent_due_unique"),
			expected: store.ErrDuplicateInstance,
		},
		{name: "other unique violation", err: newPgError("23505", "tasks_pkey"), expected: store.ErrDuplicate},
		{name: "foreign key", err: newPgError("23503", "tasks_parent_task_id_fkey"), expected: store.ErrInvalidEntity},
		{name: "check", err: newPgError("23514", "tasks_priority_check"), expected: store.ErrInvalidEntity},
		{name: "not null", err: newPgError("23502", ""), expected: store.ErrInvalidEntity},
		{
			name:     "wrapped pg error",
			err:      fmt.Errorf("exec: %w", newPgError("23505", "tasks_pkey")),
			expected: store.ErrDuplicate,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, postgres.MapError(tt.err), tt.expected)
		})
	}

	t.Run("passthrough", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, postgres.MapError(nil))
		generic := errors.New("connection refused")
		assert.Equal(t, generic, postgres.MapError(generic))
	})

	t.Run("generic unique is not an instance duplicate", func(t *testing.T) {
		t.Parallel()
		err := postgres.MapError(newPgError("23505", "tasks_pkey"))
		assert.False(t, errors.Is(err, store.ErrDuplicateInstance))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()
	assert.False(t, postgres.IsUniqueViolation(nil))
	assert.False(t, postgres.IsUniqueViolation(errors.New("generic error")))
	assert.True(t, postgres.IsUniqueViolation(newPgError("23505", "")))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23503", "")))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.Error(t, postgres.CheckRowsAffected(nil, nil))
	assert.NoError(t, postgres.CheckRowsAffected(sqlmock.NewResult(0, 1), nil))
	assert.ErrorIs(t, postgres.CheckRowsAffected(sqlmock.NewResult(0, 0), nil), store.ErrNotFound)
	assert.ErrorIs(t,
		postgres.CheckRowsAffected(sqlmock.NewResult(0, 0), store.ErrTaskNotFound),
		store.ErrTaskNotFound)

	failing := sqlmock.NewErrorResult(errors.New("driver error"))
	assert.ErrorContains(t, postgres.CheckRowsAffected(failing, nil), "rows affected")
}
