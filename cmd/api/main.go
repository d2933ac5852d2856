package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/appforge/droid-builder/generator-api/internal/auth"
	"github.com/appforge/droid-builder/generator-api/internal/config"
	"github.com/appforge/droid-builder/generator-api/internal/gateway"
	"github.com/appforge/droid-builder/generator-api/internal/genai"
	"github.com/appforge/droid-builder/generator-api/internal/metrics"
	"github.com/appforge/droid-builder/generator-api/internal/orchestration"
	"github.com/appforge/droid-builder/generator-api/internal/project"
	"github.com/appforge/droid-builder/generator-api/internal/ws"

	_ "github.com/appforge/droid-builder/generator-api/docs" // swagger docs
)

// @title Droid Builder Generator API
// @version 1.0
// @description API for generating Android application projects from natural-language prompts.
// @description
// @description A prompt is sent to a generative AI backend, the returned project files are
// @description materialized into an isolated workspace, packaged as a zip archive, and
// @description optionally compiled into an APK with Gradle.

// @contact.name API Support
// @contact.email support@appforge.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

func main() {
	// Initialize OpenTelemetry
	if err := initTracer(); err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}

	cfg := config.Load()

	// Connect to PostgreSQL with retry logic
	log.Println("Connecting to PostgreSQL database...")
	var pool *pgxpool.Pool
	var err error

	for i := 0; i < 10; i++ {
		pool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(context.Background())
			if err == nil {
				break
			}
		}
		log.Printf("Waiting for database... (attempt %d/10): %v", i+1, err)
		time.Sleep(3 * time.Second)
	}

	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}

	defer pool.Close()
	log.Println("Connected to PostgreSQL database")

	if err := orchestration.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	// Select the generation backend
	var generator genai.Generator
	switch cfg.GenAIBackend {
	case "ollama":
		ollamaClient, err := genai.NewOllamaClient(cfg.GenAIModel)
		if err != nil {
			log.Fatalf("Failed to initialize Ollama client: %v", err)
		}
		generator = ollamaClient
	default:
		generator = genai.NewHostedClient(cfg.GenAIURL, cfg.GenAIModel)
	}
	log.Printf(`{"level":"info","message":"Generation backend initialized","backend":"%s","model":"%s"}`, cfg.GenAIBackend, cfg.GenAIModel)

	workspaces, err := project.NewWorkspaces(cfg.WorkspaceRoot)
	if err != nil {
		log.Fatalf("Failed to initialize workspace root: %v", err)
	}
	if err := os.MkdirAll(cfg.ArchiveRoot, 0o755); err != nil {
		log.Fatalf("Failed to initialize archive root: %v", err)
	}

	var invoker *project.Invoker
	if cfg.BuildEnabled {
		invoker, err = project.NewInvoker(cfg.BuildCommand, cfg.BuildTimeout)
		if err != nil {
			log.Fatalf("Invalid build command: %v", err)
		}
		log.Printf(`{"level":"info","message":"Build stage enabled","command":"%s"}`, cfg.BuildCommand)
	}

	generationMetrics, err := metrics.NewGenerationMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	hub := ws.NewHub()

	pipeline := &orchestration.Pipeline{
		Generator:      generator,
		Workspaces:     workspaces,
		Invoker:        invoker,
		KeepWorkspaces: cfg.KeepWorkspaces,
		Metrics:        generationMetrics,
	}

	orchestrationService := orchestration.NewService(pool, pipeline, hub, generationMetrics, orchestration.Options{
		Backend:         cfg.GenAIBackend,
		ArchiveRoot:     cfg.ArchiveRoot,
		PipelineTimeout: cfg.PipelineTimeout,
	})

	// Initialize JWT manager
	jwtManager, err := auth.NewJWTManager()
	if err != nil {
		log.Fatalf("Failed to initialize JWT manager: %v", err)
	}

	// Initialize gateway layer
	gatewayHandler := gateway.NewHandler(orchestrationService, jwtManager, pool, cfg.TimestampArchives)
	stream := gateway.NewStream(pool, hub)

	// Setup Gin router
	router := gin.Default()

	// Add structured JSON logging middleware
	router.Use(structuredLoggingMiddleware())

	// Health checks MUST be at the root for the WebService standard
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/ready", func(c *gin.Context) {
		// Check database connectivity for readiness
		if err := pool.Ping(context.Background()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// API routes
	api := router.Group("/api")

	// Public routes (no authentication required)
	api.POST("/auth/login", gatewayHandler.Login)

	// Health check (public) - keep for backward compatibility
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Swagger documentation (public)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes (require JWT authentication)
	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager))

	// Generation routes
	protected.POST("/generations", gatewayHandler.CreateGeneration)
	protected.GET("/generations", gatewayHandler.ListGenerations)
	protected.GET("/generations/:id", gatewayHandler.GetGeneration)
	protected.GET("/generations/:id/archive", gatewayHandler.DownloadArchive)
	protected.GET("/generations/:id/artifact", gatewayHandler.DownloadArtifact)
	protected.DELETE("/generations/:id", gatewayHandler.CancelGeneration)

	// WebSocket routes (authenticated)
	protected.GET("/ws/generations/:id", stream.StreamGeneration)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting Generator API server on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// initTracer initializes OpenTelemetry tracing
func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return nil
}

// structuredLoggingMiddleware provides structured JSON logging for all requests
func structuredLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Calculate latency
		latency := time.Since(start)

		// Get user ID from context if available
		userID, _ := c.Get("user_id")

		// Build log entry
		logEntry := map[string]interface{}{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}

		// Add user ID if authenticated
		if userID != nil {
			logEntry["user_id"] = userID
		}

		// Add error if present
		if len(c.Errors) > 0 {
			logEntry["errors"] = c.Errors.String()
		}

		// Output as JSON
		logJSON, _ := json.Marshal(logEntry)
		log.Println(string(logJSON))
	}
}
