package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"agentrouter/internal/cache"
	"agentrouter/internal/catalog"
	"agentrouter/internal/config"
	"agentrouter/internal/domain"
	"agentrouter/internal/executor"
	"agentrouter/internal/httpapi"
	"agentrouter/internal/log"
	"agentrouter/internal/memory"
	"agentrouter/internal/security"
	"agentrouter/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger := log.Init(cfg.LogLevel)
	log.SetGlobalLogger(logger)

	logger.Info().Msg("Starting conversational router server")

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		os.Exit(1)
	}
	defer pool.Close()

	encryptionKey, err := security.DecodeKey(cfg.EncryptionKey)
	if err != nil {
		logger.Error().Err(err).Msg("failed to decode encryption key")
		os.Exit(1)
	}
	cipher, err := security.NewCredentialCipher(encryptionKey)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize credential cipher")
		os.Exit(1)
	}

	baseStore := store.NewPostgresStore(pool, logger)
	clientManager := catalog.NewClientManager(baseStore, cipher, logger)
	toolRegistry := catalog.NewToolRegistry(baseStore, pool, logger, cfg.ToolPriorityLimit)
	conversationMemory := memory.New(baseStore, logger)
	permissionCache := cache.New()

	agentExecutor := executor.New(toolRegistry, clientManager, conversationMemory, logger,
		cfg.MaxRounds, cfg.MaxHistoryMessages, cfg.ToolResultTruncateBytes)

	scopedStore := func(tenantID uuid.UUID) domain.Store {
		return store.NewTenantScopedStore(baseStore, pool, tenantID, logger)
	}

	server := httpapi.New(baseStore, scopedStore, clientManager, conversationMemory, agentExecutor, permissionCache, cfg, logger)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	// Add request logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Add request ID to context
			reqCtx := context.WithValue(c.Request().Context(), log.RequestIDKey, c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(c.Request().WithContext(reqCtx))

			err := next(c)

			// Log request
			duration := time.Since(start)
			logger.WithContext(reqCtx).Info().
				Str("method", c.Request().Method).
				Str("uri", c.Request().RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", c.Response().Status).
				Dur("duration", duration).
				Msg("http request")

			return err
		}
	})

	if err := server.RegisterRoutes(e); err != nil {
		logger.Error().Err(err).Msg("failed to register routes")
		os.Exit(1)
	}

	// Start server in a goroutine
	go func() {
		address := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("address", address).Msg("Server starting")

		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Info().Msg("Server stopped")
}
