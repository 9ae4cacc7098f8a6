package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"weboptimizer-backend/internal/service"
	"weboptimizer-backend/internal/storage"
	"weboptimizer-backend/pkg/logger"
)

func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrTurnNotFound),
		errors.Is(err, storage.ErrProjectNotFound),
		errors.Is(err, storage.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrEmptyTitle),
		errors.Is(err, service.ErrTitleTooLong),
		errors.Is(err, service.ErrNotAssistantTurn):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRequestInFlight),
		errors.Is(err, storage.ErrProjectExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
