package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"weboptimizer-backend/internal/generation"
	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/pkg/logger"
)

// GenerateHandler serves the generation endpoint on top of a Generator:
// {"body"} in, {"output"} or {"error"} out.
type GenerateHandler struct {
	generator generation.Generator
}

func NewGenerateHandler(gen generation.Generator) *GenerateHandler {
	return &GenerateHandler{generator: gen}
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
		return
	}

	output, err := h.generator.Generate(c.Request.Context(), req.Body)
	if err != nil {
		logger.Errorf("Generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, model.GenerateResponse{Output: output})
}

// errorMessage keeps the upstream message when one was relayed.
func errorMessage(err error) string {
	var endpointErr *generation.EndpointError
	if errors.As(err, &endpointErr) && endpointErr.Message != "" {
		return endpointErr.Message
	}
	return err.Error()
}
