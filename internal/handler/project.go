package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"weboptimizer-backend/internal/auth"
	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/internal/service"
)

type ProjectHandler struct {
	chatService *service.ChatService
}

func NewProjectHandler(chatService *service.ChatService) *ProjectHandler {
	return &ProjectHandler{chatService: chatService}
}

func (h *ProjectHandler) SaveProject(c *gin.Context) {
	var req model.SaveProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.chatService.SaveProject(auth.UserID(c), req.SessionID, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project.Summary())
}

func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.chatService.ListProjects(auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.chatService.GetProject(auth.UserID(c), c.Param("title"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// OpenProject starts a new session from the saved project.
func (h *ProjectHandler) OpenProject(c *gin.Context) {
	conv, err := h.chatService.OpenProject(auth.UserID(c), c.Param("title"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv.Detail())
}

func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	if err := h.chatService.DeleteProject(auth.UserID(c), c.Param("title")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}
