package main

import (
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "spaceremit/docs" // swagger docs

	"spaceremit/internal/auth"
	"spaceremit/internal/cache"
	"spaceremit/internal/config"
	"spaceremit/internal/db"
	"spaceremit/internal/gateway"
	"spaceremit/internal/handler"
	"spaceremit/internal/router"
	"spaceremit/internal/service"

	repo "spaceremit/internal/repository"
)

// @title SpaceRemit Reconciliation API
// @version 1.0
// @description Payment-status reconciliation service for the SpaceRemit gateway: webhook and browser-return callbacks plus a JWT-secured admin API.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database init")
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal().Err(err).Msg("auto-migrate")
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// Repositories
	orderRepo := repo.NewOrderRepository(gormDB)
	txRepo := repo.NewTransactionRepository(gormDB)

	// Gateway client stack
	apiClient := gateway.NewClient(cfg, log.Logger)
	verifier := gateway.NewVerifier(apiClient, log.Logger)

	// Auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Services
	reconciler := service.NewReconcileService(orderRepo, txRepo, cacheClient, log.Logger)
	adminService := service.NewAdminService(txRepo, orderRepo, apiClient, verifier, reconciler, log.Logger)
	authService := service.NewAuthService(cfg, jwtService, tokenStore)

	// Handlers
	callbackHandler := handler.NewCallbackHandler(cfg, verifier, reconciler, orderRepo, log.Logger)
	adminHandler := handler.NewAdminHandler(adminService)
	authHandler := handler.NewAuthHandler(authService)

	e := echo.New()
	e.Use(middleware.RequestID())

	router.Register(e, cfg, callbackHandler, authHandler, adminHandler)

	mode := "live"
	if cfg.TestMode {
		mode = "test"
	}
	log.Info().
		Str("mode", mode).
		Str("api_url", cfg.APIBaseURL).
		Bool("webhook_signature", cfg.WebhookSecret != "").
		Msg("spaceremit reconciliation service starting")

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server start")
	}
}
