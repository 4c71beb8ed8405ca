package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/repository"
	"github.com/atrai/atrai-backend-go/internal/service"
	"github.com/atrai/atrai-backend-go/pkg/response"
)

// fail maps service errors onto HTTP status codes
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, analysis.ErrUnknownAnalyzer):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}
