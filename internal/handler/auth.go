package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"weboptimizer-backend/internal/auth"
	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/internal/service"
)

type AuthHandler struct {
	chatService *service.ChatService
}

func NewAuthHandler(chatService *service.ChatService) *AuthHandler {
	return &AuthHandler{chatService: chatService}
}

// SignUp records the caller. Profile fields are optional; signing up twice
// returns the stored user.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, created, err := h.chatService.RegisterUser(&model.User{
		ID:        auth.UserID(c),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, model.SignInResponse{User: user, Created: created})
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	user, err := h.chatService.GetUser(auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SignInResponse{User: user})
}
