package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"

	"clawnema/internal/analytics"
	analytics_api "clawnema/internal/analytics/api"
	"clawnema/internal/auth"
	"clawnema/internal/chain"
	"clawnema/internal/comments"
	"clawnema/internal/comments/comment_api"
	commentdb "clawnema/internal/comments/db"
	"clawnema/internal/config"
	"clawnema/internal/database"
	"clawnema/internal/database/migrations"
	"clawnema/internal/kafka"
	"clawnema/internal/logger"
	"clawnema/internal/models"
	"clawnema/internal/payment"
	"clawnema/internal/scene"
	"clawnema/internal/scene/scene_api"
	"clawnema/internal/sse"
	theaterdb "clawnema/internal/theaters/db"
	"clawnema/internal/theaters/theater_api"
	ticketdb "clawnema/internal/tickets/db"
	tickets "clawnema/internal/tickets/service"
	"clawnema/internal/tickets/ticket_api"
	"clawnema/internal/utils"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("[INFO] No .env file found, using environment variables")
	}

	cfg := config.Load()

	appLogger := logger.NewLogger(cfg.Log.Dir)
	defer appLogger.Close()
	appLogger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
	}

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg, appLogger, os.Args[2:]); err != nil {
			appLogger.Fatal("MIGRATE", err.Error())
		}
		return
	}

	appLogger.Info("STARTUP", fmt.Sprintf("Starting Clawnema (%s)", cfg.Server.Environment))
	if cfg.Payment.AllowSimulated {
		appLogger.Warn("STARTUP", fmt.Sprintf("Simulated payments enabled for refs starting with %q", cfg.Payment.SimulatedPrefix))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Storage ---
	bunDB, err := database.Open(ctx, cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer bunDB.Close()

	if err := prepareSchema(ctx, cfg.Database, bunDB, appLogger); err != nil {
		appLogger.Fatal("DATABASE", fmt.Sprintf("Failed to prepare schema: %v", err))
	}

	theaterStore := &theaterdb.DB{Bun: bunDB}
	ticketLedger := &ticketdb.DB{Bun: bunDB}
	commentStore := &commentdb.DB{Bun: bunDB}

	if cfg.Database.SeedTheaters {
		if _, err := theaterStore.Seed(ctx, theaterdb.DefaultTheaters, appLogger); err != nil {
			appLogger.Fatal("DATABASE", fmt.Sprintf("Failed to seed theaters: %v", err))
		}
	}

	// --- Watch rate limiting ---
	var limiter scene.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err))
		}
		appLogger.Info("REDIS", fmt.Sprintf("Connected to Redis successfully at %s", cfg.Redis.Addr))
		limiter = scene.NewRedisLimiter(rdb, cfg.Scene.RateLimit)
	} else {
		memLimiter := scene.NewMemoryLimiter(cfg.Scene.RateLimit)
		go pruneLimiter(ctx, memLimiter, cfg.Scene.RateLimit, appLogger)
		limiter = memLimiter
		appLogger.Info("REDIS", "REDIS_ADDR not set, using in-process watch limiter")
	}

	// --- Activity events and live feed ---
	broadcaster := sse.NewCommentBroadcaster()
	var publisher tickets.EventPublisher = kafka.NopPublisher{}
	var directFeed comments.Broadcaster = broadcaster

	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.TicketIssued, cfg.Kafka.Topics.CommentPosted}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, appLogger); err != nil {
			appLogger.Warn("KAFKA", fmt.Sprintf("Could not ensure topics exist: %v", err))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, appLogger)
		defer producer.Close()
		publisher = producer

		consumer := kafka.NewCommentConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CommentPosted, cfg.Kafka.GroupID, appLogger)
		defer consumer.Close()
		go func() {
			err := consumer.Start(ctx, func(c models.CommentView) { broadcaster.Emit(c) })
			if err != nil {
				appLogger.Error("KAFKA", fmt.Sprintf("Comment consumer stopped: %v", err))
			}
		}()
		// the consumer feeds the broadcaster, so the service must not emit twice
		directFeed = nil
		appLogger.Info("KAFKA", fmt.Sprintf("Kafka enabled with brokers %v", cfg.Kafka.Brokers))
	}

	// --- Chain and payments ---
	reader, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.RequestTimeout)
	if err != nil {
		appLogger.Fatal("CHAIN", fmt.Sprintf("Failed to dial RPC %s: %v", cfg.Chain.RPCURL, err))
	}
	defer reader.Close()
	appLogger.Info("CHAIN", fmt.Sprintf("Using RPC endpoint %s", cfg.Chain.RPCURL))
	if cfg.Chain.WalletAddress == "" {
		appLogger.Warn("CHAIN", "CLAWNEMA_WALLET_ADDRESS not set, on-chain payments cannot be verified")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := payment.MustNewMetrics(reg)
	sceneMetrics := scene.MustNewMetrics(reg)

	verifier := payment.NewVerifier(payment.Options{
		Wallet:          cfg.Chain.WalletAddress,
		Token:           cfg.Chain.TokenAddress,
		Decimals:        cfg.Chain.TokenDecimals,
		ReceiptAttempts: cfg.Chain.ReceiptAttempts,
		RetryDelay:      cfg.Chain.ReceiptRetryDelay,
		LogScanBlocks:   cfg.Chain.LogScanBlocks,
		AllowSimulated:  cfg.Payment.AllowSimulated,
		SimulatedPrefix: cfg.Payment.SimulatedPrefix,
		BindSender:      cfg.Payment.BindUserOperation,
	}, reader, ticketLedger, appLogger, paymentMetrics)

	// --- Services ---
	ticketService := tickets.NewTicketService(ticketLedger, theaterStore, verifier, publisher, appLogger, cfg.Session.Duration, cfg.Kafka.Topics.TicketIssued)
	describer := scene.NewDescriber(cfg.Scene, appLogger, sceneMetrics)
	watcher := scene.NewWatcher(ticketService, theaterStore, limiter, describer, cfg.Scene.RateLimit, appLogger)
	commentService := comments.NewCommentService(commentStore, ticketService, publisher, directFeed, cfg.Kafka.Topics.CommentPosted, appLogger)
	statsService := analytics.NewService(analytics.NewDB(bunDB), cfg.Chain.TokenDecimals)

	// --- Handlers ---
	ticketHandler := ticket_api.NewHandler(ticketService, appLogger, cfg.Server.PublicURL)
	sceneHandler := scene_api.NewHandler(watcher, appLogger)
	theaterHandler := theater_api.NewHandler(theaterStore, appLogger)
	commentHandler := comment_api.NewHandler(commentService, broadcaster, appLogger)
	statsHandler := analytics_api.NewHandler(statsService, appLogger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(appLogger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Window"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(cfg, theaterStore, reader, appLogger))
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	ticketHandler.Routes(r)
	sceneHandler.Routes(r)
	theaterHandler.Routes(r)
	commentHandler.Routes(r)
	statsHandler.Routes(r)

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(auth.AdminMiddleware(cfg.Admin.APIKey, appLogger))
		theaterHandler.AdminRoutes(ar)
		statsHandler.AdminRoutes(ar)
	})
	if cfg.Admin.APIKey == "" {
		appLogger.Warn("STARTUP", "ADMIN_API_KEY not set, admin routes will answer 503")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("SERVER", fmt.Sprintf("Clawnema running on port %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("SERVER", fmt.Sprintf("Server failed: %v", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("SERVER", "Shutting down server...")

	// stop background loops and SSE streams before draining connections
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("SERVER", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLogger.Info("SERVER", "Server exited gracefully")
}

// prepareSchema runs the versioned migrations on Postgres and the bun
// model-driven schema everywhere else.
func prepareSchema(ctx context.Context, cfg config.DatabaseConfig, db *bun.DB, l *logger.Logger) error {
	if cfg.Driver == "postgres" && cfg.AutoMigrate {
		// the runner is not closed here: closing it closes the shared *sql.DB
		return migrations.NewRunner(db, l).MigrateUp()
	}
	if err := database.CreateSchema(ctx, db); err != nil {
		return err
	}
	l.LogDatabase("CREATE_SCHEMA", "*", "Schema ready")
	return nil
}

func pruneLimiter(ctx context.Context, limiter *scene.MemoryLimiter, window time.Duration, l *logger.Logger) {
	if window <= 0 {
		return
	}
	ticker := time.NewTicker(10 * window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := limiter.Prune(now); n > 0 {
				l.Debug("RATE_LIMIT", fmt.Sprintf("Pruned %d idle watch slots", n))
			}
		}
	}
}

type chainPinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(cfg *config.Config, theaters *theaterdb.DB, chainReader chainPinger, l *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := "ok"
		available, err := theaters.CountActive(ctx)
		if err != nil {
			l.Error("HEALTH", fmt.Sprintf("Theater count failed: %v", err))
			status = "degraded"
		}
		chainStatus := "ok"
		if err := chainReader.Ping(ctx); err != nil {
			l.Warn("HEALTH", fmt.Sprintf("RPC ping failed: %v", err))
			chainStatus = "unreachable"
			status = "degraded"
		}

		utils.Success(w, http.StatusOK, utils.Body{
			"status":             status,
			"timestamp":          time.Now().UTC().Format(time.RFC3339),
			"environment":        cfg.Server.Environment,
			"theaters_available": available,
			"chain":              chainStatus,
		})
	}
}
