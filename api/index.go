// Package api is the serverless entrypoint. The runtime is built on the
// first request and reused for the life of the instance.
package api

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/getsentry/sentry-go"

	"auth-service/internal/app"
	"auth-service/internal/observability"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error

	newBootstrapLogger = func() (*observability.Logger, error) {
		return observability.NewLogger(os.Getenv("LOG_LEVEL"))
	}
)

func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		apiRuntime, initErr = app.Build(app.Options{
			RunMigrations: app.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
		})
		if initErr != nil {
			reportBootstrapFailure(initErr)
		}
	})

	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "application bootstrap failed"})
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}

// Build may fail before its own logger exists, so the failure gets a
// fresh one. Sentry only reports if SENTRY_DSN was initialised.
func reportBootstrapFailure(err error) {
	logger, logErr := newBootstrapLogger()
	if logErr != nil {
		if logger, logErr = observability.NewLogger(""); logErr != nil {
			logger = observability.NewNopLogger()
		}
	}
	logger.Error("bootstrap_failed", map[string]any{"error": err})
	_ = logger.Sync()

	sentry.CaptureException(err)
	observability.FlushSentry()
}
