package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zombar/plagiarismdetector/internal/api"
	"github.com/zombar/plagiarismdetector/internal/corpus"
	"github.com/zombar/plagiarismdetector/internal/database"
	"github.com/zombar/plagiarismdetector/internal/pipeline"
	"github.com/zombar/plagiarismdetector/internal/queue"
	"github.com/zombar/plagiarismdetector/internal/semantic"
	"github.com/zombar/plagiarismdetector/pkg/logging"
	"github.com/zombar/plagiarismdetector/pkg/metrics"
	"github.com/zombar/plagiarismdetector/pkg/tracing"
)

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded configuration from .env")
	}

	logger.Info("plagiarismdetector service initializing", "version", "1.0.0")

	// Initialize tracing
	tp, err := tracing.InitTracer("plagiarismdetector")
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	// Get default values from environment variables, with fallbacks
	portDefault := getEnv("PORT", "8080")
	dbPathDefault := getEnv("DB_PATH", "plagiarismdetector.db")
	redisAddrDefault := getEnv("REDIS_ADDR", "localhost:6379")
	useQueueDefault := getEnvBool("USE_QUEUE", true)
	concurrencyDefault := getEnvInt("WORKER_CONCURRENCY", 4)
	embedderDefault := getEnv("EMBEDDER", "ollama")
	ollamaURLDefault := getEnv("OLLAMA_URL", "http://localhost:11434")
	ollamaModelDefault := getEnv("OLLAMA_MODEL", semantic.DefaultOllamaModel)
	openaiURLDefault := getEnv("OPENAI_BASE_URL", "http://localhost:8000/v1")
	openaiModelDefault := getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small")
	newsAPIURLDefault := getEnv("NEWS_API_URL", "https://content.guardianapis.com")
	academicAPIURLDefault := getEnv("ACADEMIC_API_URL", "https://api.core.ac.uk/v3")

	var (
		port           = flag.String("port", portDefault, "Server port (env: PORT)")
		dbPath         = flag.String("db", dbPathDefault, "Database file path (env: DB_PATH)")
		redisAddr      = flag.String("redis-addr", redisAddrDefault, "Redis address for the task queue (env: REDIS_ADDR)")
		useQueue       = flag.Bool("use-queue", useQueueDefault, "Process checks asynchronously via Redis (env: USE_QUEUE)")
		concurrency    = flag.Int("concurrency", concurrencyDefault, "Queue worker concurrency (env: WORKER_CONCURRENCY)")
		embedderKind   = flag.String("embedder", embedderDefault, "Embedding backend: ollama, openai, mock or none (env: EMBEDDER)")
		ollamaURL      = flag.String("ollama-url", ollamaURLDefault, "Ollama API URL (env: OLLAMA_URL)")
		ollamaModel    = flag.String("ollama-model", ollamaModelDefault, "Ollama embedding model (env: OLLAMA_MODEL)")
		openaiURL      = flag.String("openai-url", openaiURLDefault, "OpenAI-compatible API base URL (env: OPENAI_BASE_URL)")
		openaiModel    = flag.String("openai-model", openaiModelDefault, "OpenAI-compatible embedding model (env: OPENAI_EMBEDDING_MODEL)")
		newsAPIURL     = flag.String("news-api-url", newsAPIURLDefault, "News content API base URL (env: NEWS_API_URL)")
		academicAPIURL = flag.String("academic-api-url", academicAPIURLDefault, "Academic search API base URL (env: ACADEMIC_API_URL)")
	)
	flag.Parse()

	// Initialize database
	db, err := database.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "database_path", *dbPath)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database metrics
	dbMetrics := metrics.NewDatabaseMetrics("plagiarismdetector")
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			dbMetrics.UpdateDBStats(db.Conn())
		}
	}()

	businessMetrics := metrics.NewBusinessMetrics("plagiarismdetector")

	// Select the embedding backend
	var model *semantic.Model
	switch *embedderKind {
	case "ollama":
		embedder, err := semantic.NewOllamaEmbedder(*ollamaURL, *ollamaModel)
		if err != nil {
			logger.Warn("failed to initialize Ollama embedder, semantic matching disabled",
				"error", err,
				"ollama_url", *ollamaURL,
			)
		} else {
			logger.Info("Ollama embedder initialized", "model", *ollamaModel, "url", *ollamaURL)
			model = semantic.NewModel(embedder)
		}
	case "openai":
		embedder, err := semantic.NewOpenAIEmbedder(*openaiURL, *openaiModel, os.Getenv("OPENAI_API_KEY"), 0)
		if err != nil {
			logger.Warn("failed to initialize OpenAI embedder, semantic matching disabled",
				"error", err,
				"base_url", *openaiURL,
			)
		} else {
			logger.Info("OpenAI-compatible embedder initialized", "model", *openaiModel, "url", *openaiURL)
			model = semantic.NewModel(embedder)
		}
	case "mock":
		logger.Info("using deterministic mock embedder")
		model = semantic.NewModel(semantic.NewMockEmbedder())
	case "none":
		logger.Info("semantic matching disabled")
	default:
		logger.Error("unknown embedder backend", "embedder", *embedderKind)
		os.Exit(1)
	}

	// Assemble the corpus sources. External APIs without keys configure
	// themselves out by returning no candidates.
	sources := []corpus.Source{
		corpus.NewStoreSource(db),
		corpus.NewNewsSource(*newsAPIURL, os.Getenv("NEWS_API_KEY")),
		corpus.NewAcademicSource(*academicAPIURL, os.Getenv("ACADEMIC_API_KEY")),
	}

	checkerOpts := []pipeline.Option{
		pipeline.WithStore(db),
		pipeline.WithMetrics(businessMetrics),
		pipeline.WithLogger(logger),
	}
	if model != nil {
		checkerOpts = append(checkerOpts, pipeline.WithEmbedder(model))
	}
	checker, err := pipeline.New(pipeline.DefaultConfig(), sources, checkerOpts...)
	if err != nil {
		logger.Error("failed to initialize checker", "error", err)
		os.Exit(1)
	}
	defer checker.Close()

	// Queue client and worker
	var queueClient *queue.Client
	var worker *queue.Worker
	if *useQueue {
		queueClient = queue.NewClient(queue.ClientConfig{RedisAddr: *redisAddr})
		defer queueClient.Close()

		worker = queue.NewWorker(queue.WorkerConfig{
			RedisAddr:   *redisAddr,
			Concurrency: *concurrency,
		}, db, checker, model, businessMetrics)

		go func() {
			if err := worker.Start(); err != nil {
				logger.Error("queue worker failed", "error", err)
				os.Exit(1)
			}
		}()
	} else {
		logger.Info("queue disabled, checks run synchronously")
	}

	// Initialize API handler. A nil interface value must stay nil, hence the
	// split assignment.
	var apiQueue api.QueueClient
	if queueClient != nil {
		apiQueue = queueClient
	}
	apiHandler := api.NewHandler(db, checker, apiQueue)

	// Wrap handler with middleware chain: HTTP logging -> tracing -> handlers
	handler := logging.HTTPLoggingMiddleware(logger)(
		tracing.HTTPMiddleware("plagiarismdetector")(apiHandler),
	)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 360 * time.Second, // synchronous batch checks can run long
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("plagiarismdetector service starting",
			"port", *port,
			"database", *dbPath,
			"queue_enabled", *useQueue,
			"embedder", *embedderKind,
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	if worker != nil {
		worker.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
