package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/taskflow/apiserver/types"
)

const taskColumns = `id, user_id, title, description, status, priority, due_date, created_at, updated_at`

// TaskRepository handles persistence for tasks. Every statement is scoped by
// the owning user id.
type TaskRepository struct {
	conn *Conn
}

func NewTaskRepository(conn *Conn) *TaskRepository {
	return &TaskRepository{conn: conn}
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	ctx, cancel := r.conn.bound(ctx)
	defer cancel()

	ts := now()
	task.CreatedAt = ts
	task.UpdatedAt = ts

	dueDate, err := task.DueDate.Value()
	if err != nil {
		return types.Task{}, err
	}

	const query = `
		INSERT INTO tasks (user_id, title, description, status, priority, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.conn.db.QueryRowContext(
		ctx,
		query,
		task.UserID,
		task.Title,
		nullString(task.Description),
		string(task.Status),
		string(task.Priority),
		dueDate,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

// List returns the user's tasks, newest first, narrowed by filter.
func (r *TaskRepository) List(ctx context.Context, userID int, filter types.TaskFilter) ([]types.Task, error) {
	ctx, cancel := r.conn.bound(ctx)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`)
	args := []any{userID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, string(filter.Priority))
		fmt.Fprintf(&sb, " AND priority = $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")

	rows, err := r.conn.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]types.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, userID, id int) (types.Task, error) {
	ctx, cancel := r.conn.bound(ctx)
	defer cancel()

	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	task, err := scanTask(r.conn.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}

// Update applies the set fields of patch in a single conditional statement.
// ErrNotFound means no row matched both id and owner.
func (r *TaskRepository) Update(ctx context.Context, userID, id int, patch types.TaskPatch) error {
	ctx, cancel := r.conn.bound(ctx)
	defer cancel()

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title.Set {
		set("title", patch.Title.Value)
	}
	if patch.Description.Set {
		if patch.Description.Null {
			set("description", nil)
		} else {
			set("description", patch.Description.Value)
		}
	}
	if patch.Status.Set {
		set("status", string(patch.Status.Value))
	}
	if patch.Priority.Set {
		set("priority", string(patch.Priority.Value))
	}
	if patch.DueDate.Set {
		dueDate, err := patch.DueDate.Value.Value()
		if err != nil {
			return err
		}
		if patch.DueDate.Null {
			dueDate = nil
		}
		set("due_date", dueDate)
	}
	if len(sets) == 0 {
		return errors.New("empty task patch")
	}
	set("updated_at", now())

	args = append(args, id, userID)
	query := fmt.Sprintf(
		"UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args),
	)
	return r.execAffecting(ctx, query, args...)
}

// SetStatus moves a task to status unconditionally.
func (r *TaskRepository) SetStatus(ctx context.Context, userID, id int, status types.TaskStatus) error {
	ctx, cancel := r.conn.bound(ctx)
	defer cancel()

	const query = `UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`
	return r.execAffecting(ctx, query, string(status), now(), id, userID)
}

func (r *TaskRepository) Delete(ctx context.Context, userID, id int) error {
	ctx, cancel := r.conn.bound(ctx)
	defer cancel()

	const query = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	return r.execAffecting(ctx, query, id, userID)
}

// Stats counts the user's tasks by status and priority in one pass.
func (r *TaskRepository) Stats(ctx context.Context, userID int) (types.TaskStats, error) {
	ctx, cancel := r.conn.bound(ctx)
	defer cancel()

	const query = `
		SELECT
			COUNT(1),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'in-progress' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN priority = 'high' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN priority = 'medium' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN priority = 'low' THEN 1 ELSE 0 END), 0)
		FROM tasks
		WHERE user_id = $1`
	var stats types.TaskStats
	err := r.conn.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.InProgress,
		&stats.Pending,
		&stats.HighPriority,
		&stats.MediumPriority,
		&stats.LowPriority,
	)
	if err != nil {
		return types.TaskStats{}, err
	}
	return stats, nil
}

func (r *TaskRepository) execAffecting(ctx context.Context, query string, args ...any) error {
	result, err := r.conn.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (types.Task, error) {
	var (
		task        types.Task
		description sql.NullString
		status      string
		priority    string
	)
	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&description,
		&status,
		&priority,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return types.Task{}, err
	}
	if description.Valid {
		task.Description = &description.String
	}
	task.Status = types.TaskStatus(status)
	task.Priority = types.TaskPriority(priority)
	return task, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
