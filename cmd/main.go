package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mstgnz/paybox/handler"
	"github.com/mstgnz/paybox/infra/auth"
	"github.com/mstgnz/paybox/infra/config"
	"github.com/mstgnz/paybox/infra/conn"
	"github.com/mstgnz/paybox/infra/dedup"
	"github.com/mstgnz/paybox/infra/logger"
	"github.com/mstgnz/paybox/infra/metrics"
	"github.com/mstgnz/paybox/infra/middle"
	"github.com/mstgnz/paybox/infra/opensearch"
	"github.com/mstgnz/paybox/infra/response"
	"github.com/mstgnz/paybox/infra/storage"
	"github.com/mstgnz/paybox/infra/validate"
	"github.com/mstgnz/paybox/provider"
	"github.com/mstgnz/paybox/provider/paybox"
	"github.com/mstgnz/paybox/router"
)

func main() {
	issueToken := flag.Int64("issue-token", 0, "print an API token for the given account id and exit")
	flag.Parse()

	// .env is optional; real deployments pass the environment directly
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitGlobalLogger(cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	jwtService, err := auth.NewJWTService(cfg.JWTSecret, 12*time.Hour)
	if err != nil {
		logger.Fatal("JWT_SECRET is required", err)
	}

	if *issueToken > 0 {
		token, err := jwtService.GenerateToken(*issueToken)
		if err != nil {
			logger.Fatal("Failed to issue token", err)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", err)
	}
	defer store.Close()

	var (
		ledger       provider.CallbackLedger = store
		ledgerHealth handler.Pinger
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		redisLedger := dedup.NewRedisLedger(client, cfg.ClaimTTL)
		if err := redisLedger.Ping(ctx); err != nil {
			logger.Fatal("Redis is not reachable", err, logger.LogContext{
				Fields: map[string]any{"addr": cfg.RedisAddr},
			})
		}
		ledger = redisLedger
		ledgerHealth = redisLedger
		logger.Info("Callback claims stored in Redis", logger.LogContext{Fields: map[string]any{"addr": cfg.RedisAddr}})
	}

	dbEvents := provider.NewDBEventLogger(store.DB(), store.Driver())
	events := provider.MultiEventLogger{dbEvents}
	var eventReader provider.EventReader = dbEvents
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			logger.Warn("Continuing without OpenSearch event logging", logger.LogContext{
				Fields: map[string]any{"error": err.Error()},
			})
		} else {
			searchEvents := opensearch.NewEventLogger(osClient)
			events = append(events, searchEvents)
			eventReader = searchEvents
			logger.Info("OpenSearch event logging enabled")
		}
	}

	service, err := paybox.NewService(paybox.ConfigFromApp(cfg), store, ledger, events, metrics.New(nil))
	if err != nil {
		logger.Fatal("Invalid provider configuration", err)
	}

	rateLimiter := middle.NewRateLimiter(cfg.RateLimitPerMinute)
	go rateLimiter.RunCleanup(ctx.Done())

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middle.RequestLoggingMiddleware())
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middle.SecurityHeadersMiddleware())

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Routes(r, router.Deps{
		Payments: handler.NewPaymentHandler(service, validate.New()),
		Events:   handler.NewEventsHandler(eventReader),
		Health:   handler.NewHealthHandler(store, ledgerHealth, cfg.Environment),
		Tokens:   jwtService,
		Metrics:  promhttp.Handler(),

		RateLimiter: rateLimiter,
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusNotFound, response.Response{Code: http.StatusNotFound, Success: false, Message: "Not Found"})
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", err)
		}
	}()

	logger.Info("API is running", logger.LogContext{Fields: map[string]any{"port": cfg.Port}})

	<-ctx.Done()
	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}

func openStorage(ctx context.Context, cfg *config.AppConfig) (*storage.Storage, error) {
	switch cfg.DBDriver {
	case conn.DriverPostgres:
		return storage.OpenPostgres(ctx, conn.PostgresDSN())
	case "sqlite", conn.DriverSQLite:
		return storage.OpenSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
