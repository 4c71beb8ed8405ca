package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/middleware"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/service"
	"github.com/atrai/atrai-backend-go/pkg/response"
)

// ProcessHandler handles HTTP requests for process execution
type ProcessHandler struct {
	service *service.AnalysisTaskService
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(service *service.AnalysisTaskService) *ProcessHandler {
	return &ProcessHandler{service: service}
}

// ListProcesses lists the registered analyzers
// GET /api/v1/processes
func (h *ProcessHandler) ListProcesses(c *gin.Context) {
	response.Success(c, gin.H{"processes": analysis.AnalyzerNames()})
}

// Execute runs a process. With "Prefer: respond-async" the task is queued
// and returned with 202; otherwise the call blocks until the task finishes.
// POST /api/v1/processes/:name/execution
func (h *ProcessHandler) Execute(c *gin.Context) {
	var req models.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	createdBy := c.GetString(middleware.UserKey)
	name := c.Param("name")

	if preferAsync(c.GetHeader("Prefer")) {
		task, err := h.service.CreateTask(c.Request.Context(), name, req, createdBy)
		if err != nil {
			fail(c, err)
			return
		}
		c.Header("Location", "/api/v1/tasks/"+task.RunID)
		response.Accepted(c, task)
		return
	}

	task, err := h.service.Execute(c.Request.Context(), name, req, createdBy)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, task)
}

func preferAsync(header string) bool {
	for _, pref := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(pref), "respond-async") {
			return true
		}
	}
	return false
}
