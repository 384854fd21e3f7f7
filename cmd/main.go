package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lpernett/godotenv"
	"go.uber.org/zap"

	"github.com/Grey-kingreys/gestion-contact-back/internal/application/repository"
	"github.com/Grey-kingreys/gestion-contact-back/internal/application/services"
	"github.com/Grey-kingreys/gestion-contact-back/internal/infrastructure/database"
	"github.com/Grey-kingreys/gestion-contact-back/internal/infrastructure/websocket"
	"github.com/Grey-kingreys/gestion-contact-back/internal/interfaces/api"
	apperrors "github.com/Grey-kingreys/gestion-contact-back/pkg/errors"
)

func loadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	loadEnv()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewPostgreSQLDB()
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	conversationRepo := repository.NewConversationRepository(db, logger)
	visibilityStore := repository.NewVisibilityStore(db)
	userRepo := repository.NewUserRepository(db)

	// Only participants may subscribe to a conversation's room.
	authorizeJoin := func(ctx context.Context, userID, conversationID uuid.UUID) error {
		conversation, err := conversationRepo.FindByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if conversation == nil {
			return apperrors.ErrConversationNotFound
		}
		if !conversation.HasParticipant(userID) {
			return apperrors.ErrNotParticipant
		}
		return nil
	}

	hub := websocket.NewHub(authorizeJoin, logger)
	chatService := services.NewChatService(conversationRepo, visibilityStore, userRepo, hub, logger)

	chatHandler := api.NewChatHandler(chatService)
	wsHandler := api.NewWebSocketHandler(hub, logger)
	router := api.NewRouter(chatHandler, wsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	hub.Stop()
	logger.Info("server exited")
}
