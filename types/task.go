package types

import (
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// ParseTaskStatus normalizes raw and validates it.
func ParseTaskStatus(raw string) (TaskStatus, bool) {
	s := TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// TaskPriority ranks how urgent a task is.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// ParseTaskPriority normalizes raw and validates it.
func ParseTaskPriority(raw string) (TaskPriority, bool) {
	p := TaskPriority(strings.ToLower(strings.TrimSpace(raw)))
	return p, p.Valid()
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// UserID references the owning user. Every read and write is scoped by it.
	UserID int `json:"userId" db:"user_id"`

	// Title is a short, non-empty summary.
	Title string `json:"title" db:"title"`

	// Description is optional free text.
	Description *string `json:"description" db:"description"`

	// Status defaults to pending.
	Status TaskStatus `json:"status" db:"status"`

	// Priority defaults to medium.
	Priority TaskPriority `json:"priority" db:"priority"`

	// DueDate is an optional calendar date without time of day.
	DueDate Date `json:"dueDate" db:"due_date"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// TaskFilter narrows a task listing. Zero values mean "no filter".
type TaskFilter struct {
	Status   TaskStatus
	Priority TaskPriority
}

// TaskPatch carries the fields of a partial update. A field that was absent
// from the request is left unset and the stored value is kept.
type TaskPatch struct {
	Title       Optional[string]       `json:"title"`
	Description Optional[string]       `json:"description"`
	Status      Optional[TaskStatus]   `json:"status"`
	Priority    Optional[TaskPriority] `json:"priority"`
	DueDate     Optional[Date]         `json:"dueDate"`
}

// Empty reports whether the patch touches no field at all.
func (p TaskPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.Status.Set && !p.Priority.Set && !p.DueDate.Set
}

// TaskStats aggregates counts over a user's tasks.
type TaskStats struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	InProgress     int `json:"inProgress"`
	Pending        int `json:"pending"`
	HighPriority   int `json:"highPriority"`
	MediumPriority int `json:"mediumPriority"`
	LowPriority    int `json:"lowPriority"`
}
