package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solarmaint/backend/internal/adapters/cache"
	"github.com/solarmaint/backend/internal/adapters/database"
	"github.com/solarmaint/backend/internal/adapters/search"
	"github.com/solarmaint/backend/internal/api/handlers"
	"github.com/solarmaint/backend/internal/api/routes"
	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/providers"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/clients/openai"
	"github.com/solarmaint/backend/internal/infrastructure/clients/postgres"
	"github.com/solarmaint/backend/internal/infrastructure/clients/redis"
	"github.com/solarmaint/backend/internal/infrastructure/clients/typesense"
	"github.com/solarmaint/backend/internal/infrastructure/observability"
	"github.com/solarmaint/backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)
	logger := observability.GetLogger()

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	logger.Info().Msg("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		// Continue without Redis - the application works without caching
		logger.Warn().Err(err).Msg("failed to initialize Redis client")
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info().Msg("Redis client initialized successfully")
	}

	// Initialize Typesense client
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize Typesense client")
		typesenseClient = nil
	} else {
		logger.Info().Msg("Typesense client initialized successfully")
	}

	// Initialize adapters
	userAdapter := database.NewUserAdapter(pgClient)
	procedureAdapter := database.NewProcedureAdapter(pgClient)
	executionAdapter := database.NewExecutionAdapter(pgClient)
	chatAdapter := database.NewChatAdapter(pgClient)
	tipAdapter := database.NewTipAdapter(pgClient)
	settingAdapter := database.NewSettingAdapter(pgClient)
	embeddingAdapter := database.NewEmbeddingAdapter(pgClient)

	var cacheProvider providers.CacheProvider
	var rateLimiter handlers.RateLimiter
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		rateLimiter = cache.NewRateLimiter(redisClient, cfg.OpenAI.RateLimitRPM, time.Minute)
	}

	// Keyword search: Typesense when available, SQL ILIKE fallback otherwise
	var searchRepo repositories.KnowledgeSearchRepository
	if typesenseClient != nil {
		adapter := search.NewTypesenseAdapter(typesenseClient)
		if err := typesenseClient.InitSchema(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("failed to init Typesense schema")
		}
		searchRepo = adapter
	} else {
		searchRepo = database.NewKeywordSearchAdapter(pgClient)
		logger.Info().Msg("keyword search running on SQL fallback (Typesense unavailable)")
	}

	// Generative backend
	var completionProvider providers.CompletionProvider
	var embeddingProvider providers.EmbeddingProvider
	if cfg.OpenAI.APIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY is not set; chat generation disabled")
	} else {
		openaiClient, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize OpenAI client")
		} else {
			completionProvider = openaiClient
			embeddingProvider = openaiClient
		}
	}

	// Initialize services
	authService := services.NewAuthService(
		userAdapter,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLDay)*24*time.Hour,
	)
	retrievalService := services.NewRetrievalService(embeddingProvider, embeddingAdapter, searchRepo, cacheProvider)
	promptService := services.NewPromptService(chatAdapter)
	chatService := services.NewChatService(chatAdapter, retrievalService, promptService, completionProvider, metrics)
	executionService := services.NewExecutionService(executionAdapter, procedureAdapter)
	procedureService := services.NewProcedureService(procedureAdapter)
	tipService := services.NewTipService(tipAdapter)
	settingService := services.NewSettingService(settingAdapter)

	// Initialize handlers
	secureCookies := cfg.Server.Env != "development"
	authHandler := handlers.NewAuthHandler(authService, secureCookies)
	chatHandler := handlers.NewChatHandler(chatService, rateLimiter)
	executionHandler := handlers.NewExecutionHandler(executionService)
	procedureHandler := handlers.NewProcedureHandler(procedureService)
	tipHandler := handlers.NewTipHandler(tipService)
	settingHandler := handlers.NewSettingHandler(settingService)

	// Set up router
	router := routes.NewRouter(
		authHandler,
		chatHandler,
		executionHandler,
		procedureHandler,
		tipHandler,
		settingHandler,
		authService,
		metrics,
	)
	handler := router.SetupRoutes()

	// Create HTTP server. WriteTimeout must cover a full streamed
	// generation, which can run for minutes.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	logger.Info().Msg("server stopped")
}
