package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/service"
	"github.com/atrai/atrai-backend-go/pkg/response"
)

// TaskHandler handles HTTP requests for analysis tasks
type TaskHandler struct {
	service *service.AnalysisTaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(service *service.AnalysisTaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// ListTasks retrieves tasks
// GET /api/v1/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var filter models.TaskFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	tasks, err := h.service.ListTasks(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"tasks": tasks})
}

// GetTask retrieves a task by numeric ID or run ID
// GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.lookup(c)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, task)
}

// CancelTask cancels a pending or running task
// POST /api/v1/tasks/:id/cancel
func (h *TaskHandler) CancelTask(c *gin.Context) {
	task, err := h.lookup(c)
	if err != nil {
		fail(c, err)
		return
	}

	task, err = h.service.CancelTask(c.Request.Context(), task.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, task)
}

func (h *TaskHandler) lookup(c *gin.Context) (*models.AnalysisTask, error) {
	idStr := c.Param("id")
	if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
		return h.service.GetTask(c.Request.Context(), id)
	}
	return h.service.GetTaskByRunID(c.Request.Context(), idStr)
}
