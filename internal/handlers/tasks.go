package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskflow/apiserver/internal/services"
	"github.com/taskflow/apiserver/types"
)

const msgInvalidDueDate = "invalid due date"

// TaskHandler provides HTTP handlers for the caller's tasks.
type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// TaskRouter registers task routes. Every route requires authentication.
func TaskRouter(r chi.Router, taskService *services.TaskService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewTaskHandler(taskService)

	r.Use(authMiddleware)
	r.Post("/", handler.CreateTask)
	r.Get("/", handler.ListTasks)
	r.Get("/stats", handler.Stats)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Put("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
		r.Patch("/complete", handler.CompleteTask)
	})
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	task, err := h.taskService.Create(r.Context(), userID, services.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      types.TaskStatus(req.Status),
		Priority:    types.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "task created", task)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := types.TaskFilter{
		Status:   types.TaskStatus(query.Get("status")),
		Priority: types.TaskPriority(query.Get("priority")),
	}

	tasks, err := h.taskService.List(r.Context(), userID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	total := len(tasks)
	writeJSON(w, http.StatusOK, Response{Success: true, Data: tasks, Total: &total})
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := requireTask(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", task)
}

// UpdateTask applies a partial update. Fields absent from the body keep
// their stored value; description and dueDate may be cleared with null.
// A missing body is an empty patch.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := requireTask(w, r)
	if !ok {
		return
	}

	var patch types.TaskPatch
	if err := decodeJSON(w, r, &patch); err != nil && !errors.Is(err, io.EOF) {
		writeBodyError(w, err)
		return
	}

	task, err := h.taskService.Update(r.Context(), userID, id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "task updated", task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := requireTask(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "task deleted", nil)
}

func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := requireTask(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Complete(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "task completed", nil)
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.taskService.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", stats)
}

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     types.Date `json:"dueDate"`
}

func requireUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgNoCredential)
		return 0, false
	}
	return userID, true
}

func requireTask(w http.ResponseWriter, r *http.Request) (userID, taskID int, ok bool) {
	userID, ok = requireUserID(w, r)
	if !ok {
		return 0, 0, false
	}
	taskID, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return userID, taskID, true
}

func writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, types.ErrInvalidDate) {
		writeError(w, http.StatusBadRequest, msgInvalidDueDate)
		return
	}
	writeError(w, http.StatusBadRequest, msgInvalidBody)
}
