package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/service"
	"github.com/atrai/atrai-backend-go/pkg/response"
)

// TourHandler handles HTTP requests for tours and statistics
type TourHandler struct {
	service *service.QueryService
}

// NewTourHandler creates a new tour handler
func NewTourHandler(service *service.QueryService) *TourHandler {
	return &TourHandler{service: service}
}

// ListTours returns a page of tours
// GET /api/v1/tours?campaign=&box_id=&page=&pageSize=
func (h *TourHandler) ListTours(c *gin.Context) {
	var filter models.TourFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	tours, err := h.service.ListTours(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, tours)
}

// GetStatistics returns the tour statistics of a tag
// GET /api/v1/statistics/:tag
func (h *TourHandler) GetStatistics(c *gin.Context) {
	rec, err := h.service.GetStatistics(c.Request.Context(), c.Param("tag"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, rec)
}
