package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"weboptimizer-backend/internal/auth"
	"weboptimizer-backend/internal/config"
	"weboptimizer-backend/internal/generation"
	"weboptimizer-backend/internal/service"
	"weboptimizer-backend/pkg/logger"
)

func SetupRouter(cfg *config.Config, chatService *service.ChatService, gen generation.Generator, authenticator *auth.Authenticator) *gin.Engine {
	router := gin.New()

	router.Use(logger.GinLogger())
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if err := chatService.GetStorage().Ping(); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Unix(),
		})
	})

	chatHandler := NewChatHandler(chatService)
	projectHandler := NewProjectHandler(chatService)
	authHandler := NewAuthHandler(chatService)

	api := router.Group("/api")
	{
		// without an in-process model this server only consumes a remote endpoint
		if gen != nil {
			api.POST("/generate", NewGenerateHandler(gen).Generate)
		}

		secured := api.Group("")
		secured.Use(authenticator.Middleware())

		authGroup := secured.Group("/auth")
		{
			authGroup.POST("/sign-up", authHandler.SignUp)
			authGroup.POST("/sign-in", authHandler.SignIn)
		}

		sessions := secured.Group("/sessions")
		{
			sessions.POST("", chatHandler.CreateSession)
			sessions.GET("", chatHandler.ListSessions)
			sessions.GET("/:session_id", chatHandler.GetSession)
			sessions.DELETE("/:session_id", chatHandler.DeleteSession)
			sessions.POST("/:session_id/messages", chatHandler.SendMessage)
			sessions.POST("/:session_id/turns/:index/apply", chatHandler.ApplyTurn)
			sessions.PUT("/:session_id/buffer", chatHandler.EditBuffer)
			sessions.GET("/:session_id/preview", chatHandler.GetPreview)
			sessions.GET("/:session_id/preview/stream", chatHandler.StreamPreview)
			sessions.GET("/:session_id/preview/ws", chatHandler.PreviewSocket)
		}

		projects := secured.Group("/projects")
		{
			projects.POST("", projectHandler.SaveProject)
			projects.GET("", projectHandler.ListProjects)
			projects.GET("/:title", projectHandler.GetProject)
			projects.POST("/:title/open", projectHandler.OpenProject)
			projects.DELETE("/:title", projectHandler.DeleteProject)
		}
	}

	return router
}
