package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"weboptimizer-backend/internal/auth"
	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/internal/service"
	"weboptimizer-backend/internal/utils"
	"weboptimizer-backend/pkg/logger"
)

const defaultHeartbeat = 30 * time.Second

type ChatHandler struct {
	chatService *service.ChatService
	heartbeat   time.Duration
	upgrader    websocket.Upgrader
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		heartbeat:   defaultHeartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origins are enforced by the CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	conv := h.chatService.CreateSession(auth.UserID(c))
	c.JSON(http.StatusCreated, conv.Detail())
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.chatService.ListSessions(auth.UserID(c)),
	})
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	conv, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, conv.Detail())
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.chatService.DeleteSession(auth.UserID(c), c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

// SendMessage blocks until the assistant turn exists. Failed generations
// still answer 200 with the failure class set.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	conv, ok := h.session(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := conv.Submit(c.Request.Context(), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) ApplyTurn(c *gin.Context) {
	conv, ok := h.session(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "turn index must be an integer"})
		return
	}

	resp, err := conv.Apply(index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) EditBuffer(c *gin.Context) {
	conv, ok := h.session(c)
	if !ok {
		return
	}

	var req model.EditBufferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"buffer": conv.EditBuffer(req.Code, req.Style)})
}

func (h *ChatHandler) GetPreview(c *gin.Context) {
	conv, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": conv.Preview().Latest()})
}

// StreamPreview pushes the preview files as server-sent events until the
// client leaves or the session ends.
func (h *ChatHandler) StreamPreview(c *gin.Context) {
	conv, ok := h.session(c)
	if !ok {
		return
	}

	updates, cancel := conv.Preview().Subscribe()
	defer cancel()

	sseWriter := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)

	heartbeatTicker := time.NewTicker(h.heartbeat)
	defer heartbeatTicker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case files, ok := <-updates:
			if !ok {
				sseWriter.Close()
				return
			}
			if err := sseWriter.WriteJSON("preview", gin.H{"files": files}); err != nil {
				logger.Warnf("Failed to write preview event: %v", err)
				return
			}
		case <-heartbeatTicker.C:
			if err := sseWriter.Comment(fmt.Sprintf("heartbeat %d", time.Now().Unix())); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// PreviewSocket is StreamPreview over a WebSocket. Client messages are read
// only to notice the close.
func (h *ChatHandler) PreviewSocket(c *gin.Context) {
	conv, ok := h.session(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := conv.Preview().Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := logger.WithFields(logrus.Fields{"session_id": conv.ID()})
	pingTicker := time.NewTicker(h.heartbeat)
	defer pingTicker.Stop()

	for {
		select {
		case files, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(gin.H{"files": files}); err != nil {
				log.Warnf("Failed to write preview message: %v", err)
				return
			}
		case <-pingTicker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *ChatHandler) session(c *gin.Context) (*service.Conversation, bool) {
	conv, err := h.chatService.GetSession(auth.UserID(c), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return conv, true
}
