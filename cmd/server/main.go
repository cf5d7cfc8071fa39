package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/cargoflow/tradeops-api/internal/auth"
	"github.com/cargoflow/tradeops-api/internal/cache"
	"github.com/cargoflow/tradeops-api/internal/config"
	"github.com/cargoflow/tradeops-api/internal/contracts"
	"github.com/cargoflow/tradeops-api/internal/database"
	"github.com/cargoflow/tradeops-api/internal/events"
	"github.com/cargoflow/tradeops-api/internal/letters"
	"github.com/cargoflow/tradeops-api/internal/needs"
	"github.com/cargoflow/tradeops-api/internal/requests"
	"github.com/cargoflow/tradeops-api/internal/vessels"
	"github.com/cargoflow/tradeops-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the trade-operations API server with graceful
// shutdown support
func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Optional redis-backed quantity cache
	var quantityCache *cache.QuantityCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			zlog.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		quantityCache = cache.NewQuantityCache(rdb)
	}

	// Initialize router
	router := gin.Default()

	// Wire the status cascades: contract lifecycle moves its request,
	// customs release completes its vessel
	dispatcher := events.NewDispatcher()
	requests.RegisterCascades(dispatcher)
	vessels.RegisterCascades(dispatcher)

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	if err := authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to register API credentials")
	}

	needsService := needs.NewService(db)
	needsHandlers := needs.NewGinHandlers(needsService)

	requestsService := requests.NewService(db)
	requestsHandlers := requests.NewGinHandlers(requestsService)

	contractsService := contracts.NewService(db, dispatcher)
	contractsHandlers := contracts.NewGinHandlers(contractsService)

	vesselsService := vessels.NewService(db, dispatcher)
	vesselsHandlers := vessels.NewGinHandlers(vesselsService)

	lettersService := letters.NewService(db, quantityCache, cfg.OverAllocationPolicy)
	lettersHandlers := letters.NewGinHandlers(lettersService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg,
		authHandlers, needsHandlers, requestsHandlers,
		contractsHandlers, vesselsHandlers, lettersHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Entity routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	cfg config.Config,
	authHandlers *auth.GinHandlers,
	needsHandlers *needs.GinHandlers,
	requestsHandlers *requests.GinHandlers,
	contractsHandlers *contracts.GinHandlers,
	vesselsHandlers *vessels.GinHandlers,
	lettersHandlers *letters.GinHandlers,
) {
	jwtSecret := []byte(cfg.JWTSecret)

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Need routes
		needsGroup := v1.Group("/needs")
		needsGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			needsGroup.POST("", needsHandlers.CreateNeedHandler())
			needsGroup.GET("", needsHandlers.ListNeedsHandler())
			needsGroup.GET("/progress-report", needsHandlers.ProgressReportHandler())
			needsGroup.GET("/:need_id", needsHandlers.GetNeedHandler())
			needsGroup.DELETE("/:need_id", needsHandlers.DeleteNeedHandler())
			needsGroup.PATCH("/:need_id/progress", needsHandlers.PatchProgressHandler())
		}

		// Request routes
		requestsGroup := v1.Group("/requests")
		requestsGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			requestsGroup.POST("", requestsHandlers.CreateRequestHandler())
			requestsGroup.GET("", requestsHandlers.ListRequestsHandler())
			requestsGroup.GET("/:request_id", requestsHandlers.GetRequestHandler())
		}

		// Contract routes; creation and approval fire the request cascades
		contractsGroup := v1.Group("/contracts")
		contractsGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			contractsGroup.POST("", contractsHandlers.CreateContractHandler())
			contractsGroup.GET("", contractsHandlers.ListContractsHandler())
			contractsGroup.GET("/:contract_id", contractsHandlers.GetContractHandler())
			contractsGroup.POST("/:contract_id/approve", contractsHandlers.ApproveContractHandler())
		}

		// Vessel routes; customs release fires the completion cascade
		vesselsGroup := v1.Group("/vessels")
		vesselsGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			vesselsGroup.POST("", vesselsHandlers.CreateVesselHandler())
			vesselsGroup.GET("", vesselsHandlers.ListVesselsHandler())
			vesselsGroup.GET("/:vessel_id", vesselsHandlers.GetVesselHandler())
			vesselsGroup.PATCH("/:vessel_id", vesselsHandlers.UpdateVesselHandler())
			vesselsGroup.POST("/:vessel_id/customs-release", vesselsHandlers.CustomsReleaseHandler())
			vesselsGroup.GET("/:vessel_id/discharge-progress", vesselsHandlers.DischargeProgressHandler())
		}

		// Letter of credit routes
		lettersGroup := v1.Group("/letters-of-credit")
		lettersGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			lettersGroup.POST("", lettersHandlers.CreateLetterOfCreditHandler())
			lettersGroup.GET("/:lc_id", lettersHandlers.GetLetterOfCreditHandler())
			lettersGroup.GET("/:lc_id/allocated-quantity", lettersHandlers.GetAllocatedQuantityHandler())
			lettersGroup.GET("/:lc_id/quantity-summary", lettersHandlers.GetQuantitySummaryHandler())
			lettersGroup.POST("/:lc_id/allocations", lettersHandlers.RecordAllocationHandler())
		}

		allocationsGroup := v1.Group("/allocations")
		allocationsGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			allocationsGroup.DELETE("/:allocation_id", lettersHandlers.RemoveAllocationHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/needs/update-progress", needsHandlers.UpdateProgressHandler())
		}
	}
}
