package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"weboptimizer-backend/internal/auth"
	"weboptimizer-backend/internal/config"
	"weboptimizer-backend/internal/generation"
	"weboptimizer-backend/internal/handler"
	"weboptimizer-backend/internal/llm"
	"weboptimizer-backend/internal/service"
	"weboptimizer-backend/internal/storage"
	"weboptimizer-backend/pkg/logger"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	store := storage.Open(cfg.Storage)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close storage: %v", err)
		}
	}()

	var modelGen *generation.ModelGenerator
	chatModel, err := llm.NewChatModel(context.Background(), cfg.Model)
	if err != nil {
		logger.Warnf("In-process model unavailable: %v", err)
	} else {
		modelGen = generation.NewModelGenerator(chatModel, cfg.Model.SystemPrompt)
	}

	convGen, apiGen, err := selectGenerators(cfg.Generation, modelGen)
	if err != nil {
		logger.Fatalf("Failed to configure generation: %v", err)
	}

	chatService, err := service.NewChatService(cfg, store, convGen)
	if err != nil {
		logger.Fatalf("Failed to create chat service: %v", err)
	}
	if err := chatService.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.SetupRouter(cfg, chatService, apiGen, auth.NewAuthenticator(cfg.Auth))

	server := newHTTPServer(cfg.Server, router, chatService)

	go func() {
		logger.Infof("Server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	chatService.Stop(ctx)
	logger.Info("Server stopped")
	return nil
}

// newHTTPServer builds the server. Preview streams end as soon as shutdown
// begins so they do not hold Shutdown until its deadline.
func newHTTPServer(cfg config.ServerConfig, h http.Handler, chatService *service.ChatService) *http.Server {
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        h,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	server.RegisterOnShutdown(chatService.ClosePreviews)
	return server
}

// selectGenerators returns the generator conversations call and the one
// served on /api/generate. A configured endpoint takes precedence for
// conversations; the API is only served with an in-process model.
func selectGenerators(cfg config.GenerationConfig, modelGen *generation.ModelGenerator) (conv, api generation.Generator, err error) {
	if modelGen != nil {
		api = modelGen
	}

	switch {
	case cfg.Endpoint != "":
		conv = generation.NewHTTPClient(cfg.Endpoint, cfg.Timeout)
	case modelGen != nil:
		conv = modelGen
	default:
		return nil, nil, errors.New("no generator: set generation.endpoint or a model API key")
	}
	return conv, api, nil
}
