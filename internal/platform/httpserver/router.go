package httpserver

import (
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/example/aoq-factory/internal/platform/api"
	"github.com/example/aoq-factory/internal/platform/metrics"
)

// RouterConfig customises SetupRouter. The zero value is usable.
type RouterConfig struct {
	// ReadyFunc backs /readyz; nil means always ready.
	ReadyFunc func() error
	Logger    *zap.Logger
}

// SetupRouter attaches base middlewares and common endpoints.
// IMPORTANT: must be called before registering any routes.
func SetupRouter(r chi.Router, cfgs ...RouterConfig) {
	var cfg RouterConfig
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	// Correlation / request id
	r.Use(RequestIDMiddleware("X-Request-Id"))
	r.Use(recoverer(cfg.Logger))
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   parseCORSOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadyFunc != nil {
			if err := cfg.ReadyFunc(); err != nil {
				cfg.Logger.Warn("readiness check failed", zap.Error(err))
				api.Unavailable(w, "NOT_READY", err.Error(), RequestIDFromContext(r.Context()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
}

func recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				rid := RequestIDFromContext(r.Context())
				log.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", rid),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				api.Internal(w, rid)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// parseCORSOrigins splits a comma separated origin list; empty means "*".
func parseCORSOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
