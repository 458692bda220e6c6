package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"auth-service/internal/auth"
	"auth-service/internal/db"
	"auth-service/internal/observability"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Config  Config
	Handler http.Handler
	Logger  *observability.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := OpenDatabase(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	if options.RunMigrations {
		applied, err := db.RunMigrations(context.Background(), database)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations_applied", map[string]any{"versions": applied})
	}

	authRepo := auth.NewRepository(database)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(authRepo, tokens).WithAdminSignUp(cfg.AllowAdminSignUp)
	cookies := auth.NewCookies(cfg.Production(), cfg.CookieMaxAge)
	authHandler := auth.NewHandler(authService, cookies, logger)

	if err := authService.BootstrapAdmin(context.Background(), cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/sign-up", authHandler.SignUp)
	mux.HandleFunc("POST /api/auth/sign-in", authHandler.SignIn)
	mux.HandleFunc("POST /api/auth/sign-out", authHandler.SignOut)
	mux.Handle("GET /api/auth/me", auth.RequireUser(tokens, cookies, http.HandlerFunc(authHandler.Me)))
	mux.HandleFunc("GET /health", healthHandler(database))

	var handler http.Handler = mux
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		})(handler)
	}
	handler = observability.Middleware(logger, handler)

	return &Runtime{
		Config:  cfg,
		Handler: handler,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			_ = logger.Sync()
			return database.Close()
		},
	}, nil
}

// OpenDatabase opens the pgx-backed pool and verifies connectivity.
func OpenDatabase(ctx context.Context, cfg Config) (*sql.DB, error) {
	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return database, nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func healthHandler(database pinger) http.HandlerFunc {
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
