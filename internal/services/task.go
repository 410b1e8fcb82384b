package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskflow/apiserver/internal/events"
	"github.com/taskflow/apiserver/internal/logging"
	"github.com/taskflow/apiserver/internal/store"
	"github.com/taskflow/apiserver/types"
)

// TaskRepository defines persistence operations for tasks. Every method is
// scoped by the owner's user id.
type TaskRepository interface {
	Create(ctx context.Context, task types.Task) (types.Task, error)
	List(ctx context.Context, userID int, filter types.TaskFilter) ([]types.Task, error)
	Get(ctx context.Context, userID, id int) (types.Task, error)
	Update(ctx context.Context, userID, id int, patch types.TaskPatch) error
	SetStatus(ctx context.Context, userID, id int, status types.TaskStatus) error
	Delete(ctx context.Context, userID, id int) error
	Stats(ctx context.Context, userID int) (types.TaskStats, error)
}

// NewTask is the input of TaskService.Create. Empty status and priority
// take their defaults.
type NewTask struct {
	Title       string
	Description *string
	Status      types.TaskStatus
	Priority    types.TaskPriority
	DueDate     types.Date
}

// TaskService encapsulates task use-cases for an authenticated owner.
type TaskService struct {
	repo   TaskRepository
	events events.Publisher
}

func NewTaskService(repo TaskRepository, publisher events.Publisher) *TaskService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &TaskService{repo: repo, events: publisher}
}

func (s *TaskService) Create(ctx context.Context, userID int, in NewTask) (types.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return types.Task{}, ErrTitleRequired
	}

	status := types.StatusPending
	if in.Status != "" {
		var ok bool
		if status, ok = types.ParseTaskStatus(string(in.Status)); !ok {
			return types.Task{}, ErrInvalidStatus
		}
	}
	priority := types.PriorityMedium
	if in.Priority != "" {
		var ok bool
		if priority, ok = types.ParseTaskPriority(string(in.Priority)); !ok {
			return types.Task{}, ErrInvalidPriority
		}
	}

	task, err := s.repo.Create(ctx, types.Task{
		UserID:      userID,
		Title:       title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
	})
	if err != nil {
		return types.Task{}, fmt.Errorf("create task: %w", err)
	}

	s.publish(ctx, events.TaskCreated, userID, task.ID)
	return task, nil
}

// List returns the owner's tasks, newest first. Filter values are matched
// case-insensitively.
func (s *TaskService) List(ctx context.Context, userID int, filter types.TaskFilter) ([]types.Task, error) {
	if filter.Status != "" {
		var ok bool
		if filter.Status, ok = types.ParseTaskStatus(string(filter.Status)); !ok {
			return nil, ErrInvalidStatus
		}
	}
	if filter.Priority != "" {
		var ok bool
		if filter.Priority, ok = types.ParseTaskPriority(string(filter.Priority)); !ok {
			return nil, ErrInvalidPriority
		}
	}
	tasks, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, userID, id int) (types.Task, error) {
	task, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return types.Task{}, notFound(err)
	}
	return task, nil
}

// Update applies only the fields set in patch and returns the stored result.
func (s *TaskService) Update(ctx context.Context, userID, id int, patch types.TaskPatch) (types.Task, error) {
	if _, err := s.repo.Get(ctx, userID, id); err != nil {
		return types.Task{}, notFound(err)
	}
	if patch.Empty() {
		return types.Task{}, ErrNothingToUpdate
	}
	if err := validatePatch(&patch); err != nil {
		return types.Task{}, err
	}

	if err := s.repo.Update(ctx, userID, id, patch); err != nil {
		return types.Task{}, notFound(err)
	}

	task, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return types.Task{}, notFound(err)
	}

	s.publish(ctx, events.TaskUpdated, userID, id)
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, id int) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return notFound(err)
	}
	s.publish(ctx, events.TaskDeleted, userID, id)
	return nil
}

// Complete marks the task completed. Completing a completed task succeeds.
func (s *TaskService) Complete(ctx context.Context, userID, id int) error {
	if err := s.repo.SetStatus(ctx, userID, id, types.StatusCompleted); err != nil {
		return notFound(err)
	}
	s.publish(ctx, events.TaskCompleted, userID, id)
	return nil
}

func (s *TaskService) Stats(ctx context.Context, userID int) (types.TaskStats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return types.TaskStats{}, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

func (s *TaskService) publish(ctx context.Context, typ string, userID, taskID int) {
	if err := s.events.Publish(ctx, events.New(typ, userID, taskID)); err != nil {
		logging.FromContext(ctx).Warn("publish event failed", "type", typ, "task_id", taskID, "error", err)
	}
}

func validatePatch(patch *types.TaskPatch) error {
	if patch.Title.Set {
		patch.Title.Value = strings.TrimSpace(patch.Title.Value)
		if patch.Title.Null || patch.Title.Value == "" {
			return ErrTitleRequired
		}
	}
	if patch.Status.Set {
		status, ok := types.ParseTaskStatus(string(patch.Status.Value))
		if patch.Status.Null || !ok {
			return ErrInvalidStatus
		}
		patch.Status.Value = status
	}
	if patch.Priority.Set {
		priority, ok := types.ParseTaskPriority(string(patch.Priority.Value))
		if patch.Priority.Null || !ok {
			return ErrInvalidPriority
		}
		patch.Priority.Value = priority
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}
