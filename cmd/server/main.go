package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/embersense/api/internal/auth"
	"github.com/embersense/api/internal/client"
	"github.com/embersense/api/internal/config"
	"github.com/embersense/api/internal/handler"
	"github.com/embersense/api/internal/middleware"
	"github.com/embersense/api/internal/service"
	ws "github.com/embersense/api/internal/websocket"
	"github.com/embersense/api/internal/worker"
)

// @title          EmberSense API
// @version        1.0
// @description    Backend API for EmberSense — acoustic wildfire detection.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	modelClient := client.NewModelClient(&cfg.Model)
	nasaClient := client.NewNASAClient(&cfg.NASA)
	noaaClient := client.NewNOAAClient(&cfg.NOAA)

	// Initialize R2 client (optional - continues if not configured)
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		var err error
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		}
	} else {
		log.Println("Info: R2 storage not configured, clips will not be archived")
	}

	// Initialize OIDC JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.OIDC.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Initialize services. The storage interface carries a typed-nil
	// trap, so only pass the R2 client when it exists.
	var storage client.StorageClient
	if r2Client != nil {
		storage = r2Client
	}
	resultsService := service.NewResultsService(redisClient)
	analyzeService := service.NewAnalyzeService(redisClient, modelClient, storage, resultsService, cfg.Model.MetricsPath)
	batchService := service.NewBatchService(redisClient, asynqClient)
	sensorService := service.NewSensorService(redisClient, asynqClient, noaaClient)

	// Initialize handlers
	analyzeHandler := handler.NewAnalyzeHandler(analyzeService, validate)
	batchHandler := handler.NewBatchHandler(batchService, validate)
	sensorHandler := handler.NewSensorHandler(sensorService, validate)
	resultsHandler := handler.NewResultsHandler(resultsService)

	// Initialize auth handler for ForwardAuth verification
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		// Direct mode: auth is handled by the backend itself
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"model":    modelClient.IsConfigured(),
				"r2":       r2Client != nil,
				"stations": noaaClient.IsConfigured(),
				"auth":     jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// Public analysis routes: the dashboard classifies clips without
	// an account.
	app.Post("/api/analyze", rateLimiter.AnalyzeLimit(cfg.RateLimit.AnalyzePerMin), analyzeHandler.Analyze)
	app.Get("/api/model/info", analyzeHandler.ModelInfo)
	app.Get("/api/results", resultsHandler.List)
	app.Post("/api/results/clear", resultsHandler.Clear)
	app.Get("/api/sensor/risk/:location", sensorHandler.Risk)
	app.Get("/api/sensor/stations", sensorHandler.Stations)

	// Authenticated API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Batch routes
	batch := api.Group("/batch")
	batch.Post("/start", rateLimiter.BatchLimit(cfg.RateLimit.BatchPerHour), batchHandler.Start)
	batch.Get("/status/:jobId", batchHandler.Status)
	batch.Get("/result/:jobId", batchHandler.Result)
	batch.Post("/cancel/:jobId", batchHandler.Cancel)

	// Sensor routes
	sensor := api.Group("/sensor")
	sensor.Post("/ingest", rateLimiter.SensorLimit(cfg.RateLimit.SensorPerHour), sensorHandler.Ingest)
	sensor.Get("/status/:jobId", sensorHandler.Status)
	sensor.Get("/result/:jobId", sensorHandler.Result)
	sensor.Post("/cancel/:jobId", sensorHandler.Cancel)

	// Clip management
	api.Delete("/clips/:clipId", rateLimiter.ClipsLimit(cfg.RateLimit.ClipsPerHour), analyzeHandler.DeleteClip)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, batchService, sensorService, nasaClient, r2Client, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	batchService *service.BatchService,
	sensorService *service.SensorService,
	nasaClient *client.NASAClient,
	r2Client *client.R2Client,
	hub *ws.Hub,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"batch":  6,
				"sensor": 4,
			},
			LogLevel: asynqLogLevel,
		},
	)

	var storage client.StorageClient
	if r2Client != nil {
		storage = r2Client
	}

	batchWorker := worker.NewBatchWorker(batchService, hub)
	sensorWorker := worker.NewSensorWorker(sensorService, nasaClient, storage, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeBatch, batchWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeSensor, sensorWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
