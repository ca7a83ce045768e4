package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"payment-platform/internal/auth"
	"payment-platform/internal/cart"
	"payment-platform/internal/db"
	"payment-platform/internal/merchant"
	"payment-platform/internal/observability"
	"payment-platform/internal/order"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires configuration, the database, and every handler into a single
// http.Handler. Both the server binary and the serverless entrypoint call it.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	signingKey, err := mustEnv("JWT_SIGNING_KEY")
	if err != nil {
		return nil, err
	}
	issuer, err := mustEnv("AUTH_ISSUER")
	if err != nil {
		return nil, err
	}
	audience, err := mustEnv("AUTH_AUDIENCE")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(context.Background(), database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	codec := auth.NewTokenCodec(
		signingKey,
		issuer,
		audience,
		envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
	)

	credentialStore := auth.NewRepository(database)
	authService := auth.NewService(
		credentialStore,
		codec,
		envMinutesOrDefault("REFRESH_TOKEN_TTL_MINUTES", 7*24*60),
		logger,
	)
	authHandler := auth.NewHandler(authService)

	cartRepo := cart.NewRepository(database)
	orderRepo := order.NewRepository(database, cartRepo)
	orderHandler := order.NewHandler(orderRepo)

	merchantRepo := merchant.NewRepository(database)
	merchantHandler := merchant.NewHandler(merchantRepo)

	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	protected := func(handler http.HandlerFunc) http.Handler {
		return auth.Middleware(codec, handler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts/register", authHandler.Register)
	mux.Handle("POST /accounts/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /accounts/refresh-token", authHandler.Refresh)
	mux.Handle("POST /accounts/revoke-token", protected(authHandler.Revoke))

	mux.Handle("POST /api/v1/orders", protected(orderHandler.Create))
	mux.Handle("GET /api/v1/orders", protected(orderHandler.List))
	mux.Handle("GET /api/v1/orders/{orderId}", protected(orderHandler.GetByID))
	mux.Handle("GET /api/v1/orders/customers/{customerId}", protected(orderHandler.ListByCustomer))
	mux.Handle("POST /api/v1/orders/reject/{orderId}", protected(orderHandler.Reject))

	mux.Handle("POST /api/v1/merchants", protected(merchantHandler.Create))
	mux.Handle("GET /api/v1/merchants/{merchantId}", protected(merchantHandler.GetByID))

	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func EnvPortOrDefault(fallback string) string {
	return envOrDefault("PORT", fallback)
}
