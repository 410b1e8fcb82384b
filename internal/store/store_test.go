package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskflow/apiserver/internal/db/dbtest"
	"github.com/taskflow/apiserver/types"
)

func newRepos(t *testing.T) (*UserRepository, *TaskRepository) {
	t.Helper()
	conn := NewConn(dbtest.NewSQLite(t), time.Second)
	return NewUserRepository(conn), NewTaskRepository(conn)
}

func createUser(t *testing.T, users *UserRepository, email string) types.User {
	t.Helper()
	user, err := users.Create(t.Context(), types.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$2a$04$hash",
	})
	require.NoError(t, err)
	return user
}

func TestUserRepository(t *testing.T) {
	users, _ := newRepos(t)
	ctx := t.Context()

	alice := createUser(t, users, "alice@example.com")
	require.Positive(t, alice.ID)

	bob := createUser(t, users, "bob@example.com")
	require.NotEqual(t, alice.ID, bob.ID)

	got, err := users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)
	require.Equal(t, "$2a$04$hash", got.PasswordHash)

	got, err = users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", got.Email)

	_, err = users.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = users.Create(ctx, types.User{Name: "Dup", Email: "alice@example.com", PasswordHash: "x"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUserDeleteCascadesTasks(t *testing.T) {
	users, tasks := newRepos(t)
	ctx := t.Context()

	alice := createUser(t, users, "alice@example.com")
	bob := createUser(t, users, "bob@example.com")

	for _, owner := range []int{alice.ID, alice.ID, bob.ID} {
		_, err := tasks.Create(ctx, types.Task{
			UserID:   owner,
			Title:    "chore",
			Status:   types.StatusPending,
			Priority: types.PriorityMedium,
		})
		require.NoError(t, err)
	}

	require.NoError(t, users.Delete(ctx, alice.ID))
	require.ErrorIs(t, users.Delete(ctx, alice.ID), ErrNotFound)

	_, err := users.GetByID(ctx, alice.ID)
	require.ErrorIs(t, err, ErrNotFound)

	left, err := tasks.List(ctx, alice.ID, types.TaskFilter{})
	require.NoError(t, err)
	require.Empty(t, left)

	bobs, err := tasks.List(ctx, bob.ID, types.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, bobs, 1)
}

func TestTaskRepositoryCRUD(t *testing.T) {
	users, tasks := newRepos(t)
	ctx := t.Context()

	owner := createUser(t, users, "owner@example.com")
	other := createUser(t, users, "other@example.com")

	desc := "two litres"
	due, err := types.ParseDate("2030-01-15")
	require.NoError(t, err)

	created, err := tasks.Create(ctx, types.Task{
		UserID:      owner.ID,
		Title:       "Buy milk",
		Description: &desc,
		Status:      types.StatusPending,
		Priority:    types.PriorityHigh,
		DueDate:     due,
	})
	require.NoError(t, err)
	require.Positive(t, created.ID)

	got, err := tasks.Get(ctx, owner.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Buy milk", got.Title)
	require.NotNil(t, got.Description)
	require.Equal(t, desc, *got.Description)
	require.Equal(t, types.StatusPending, got.Status)
	require.Equal(t, types.PriorityHigh, got.Priority)
	require.Equal(t, "2030-01-15", got.DueDate.String())

	_, err = tasks.Get(ctx, other.ID, created.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, tasks.Update(ctx, other.ID, created.ID, types.TaskPatch{Title: types.Some("hijack")}), ErrNotFound)
	require.ErrorIs(t, tasks.SetStatus(ctx, other.ID, created.ID, types.StatusCompleted), ErrNotFound)
	require.ErrorIs(t, tasks.Delete(ctx, other.ID, created.ID), ErrNotFound)

	require.NoError(t, tasks.Update(ctx, owner.ID, created.ID, types.TaskPatch{
		Status:      types.Some(types.StatusInProgress),
		Description: types.Null[string](),
		DueDate:     types.Null[types.Date](),
	}))
	got, err = tasks.Get(ctx, owner.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Buy milk", got.Title)
	require.Nil(t, got.Description)
	require.False(t, got.DueDate.Valid)
	require.Equal(t, types.StatusInProgress, got.Status)
	require.Equal(t, types.PriorityHigh, got.Priority)

	require.NoError(t, tasks.SetStatus(ctx, owner.ID, created.ID, types.StatusCompleted))
	require.NoError(t, tasks.SetStatus(ctx, owner.ID, created.ID, types.StatusCompleted))

	require.NoError(t, tasks.Delete(ctx, owner.ID, created.ID))
	require.ErrorIs(t, tasks.Delete(ctx, owner.ID, created.ID), ErrNotFound)
}

func TestTaskRepositoryListFiltersAndOrder(t *testing.T) {
	users, tasks := newRepos(t)
	ctx := t.Context()

	owner := createUser(t, users, "owner@example.com")
	other := createUser(t, users, "other@example.com")

	seed := []types.Task{
		{UserID: owner.ID, Title: "first", Status: types.StatusPending, Priority: types.PriorityHigh},
		{UserID: owner.ID, Title: "second", Status: types.StatusCompleted, Priority: types.PriorityLow},
		{UserID: owner.ID, Title: "third", Status: types.StatusPending, Priority: types.PriorityLow},
		{UserID: other.ID, Title: "foreign", Status: types.StatusPending, Priority: types.PriorityHigh},
	}
	for _, task := range seed {
		_, err := tasks.Create(ctx, task)
		require.NoError(t, err)
	}

	all, err := tasks.List(ctx, owner.ID, types.TaskFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"third", "second", "first"}, titles(all))

	high, err := tasks.List(ctx, owner.ID, types.TaskFilter{Priority: types.PriorityHigh})
	require.NoError(t, err)
	require.Equal(t, []string{"first"}, titles(high))

	pendingLow, err := tasks.List(ctx, owner.ID, types.TaskFilter{Status: types.StatusPending, Priority: types.PriorityLow})
	require.NoError(t, err)
	require.Equal(t, []string{"third"}, titles(pendingLow))

	none, err := tasks.List(ctx, owner.ID, types.TaskFilter{Status: types.StatusInProgress})
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestTaskRepositoryStats(t *testing.T) {
	users, tasks := newRepos(t)
	ctx := t.Context()

	owner := createUser(t, users, "owner@example.com")

	empty, err := tasks.Stats(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskStats{}, empty)

	seed := []types.Task{
		{UserID: owner.ID, Title: "a", Status: types.StatusPending, Priority: types.PriorityHigh},
		{UserID: owner.ID, Title: "b", Status: types.StatusCompleted, Priority: types.PriorityHigh},
		{UserID: owner.ID, Title: "c", Status: types.StatusInProgress, Priority: types.PriorityMedium},
		{UserID: owner.ID, Title: "d", Status: types.StatusCompleted, Priority: types.PriorityLow},
	}
	for _, task := range seed {
		_, err := tasks.Create(ctx, task)
		require.NoError(t, err)
	}

	stats, err := tasks.Stats(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskStats{
		Total:          4,
		Completed:      2,
		InProgress:     1,
		Pending:        1,
		HighPriority:   2,
		MediumPriority: 1,
		LowPriority:    1,
	}, stats)
}

func TestQueryTimeout(t *testing.T) {
	conn := NewConn(dbtest.NewSQLite(t), time.Second)
	users := NewUserRepository(conn)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := users.GetByID(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func titles(tasks []types.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}
