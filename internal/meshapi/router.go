package meshapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agentgateway/agentgateway/internal/mesh"
)

// RouterConfig holds all dependencies needed to build the HTTP router. It
// is populated in main.go after all components are initialized and passed
// to NewRouter as a single struct to keep the constructor signature
// manageable as the number of dependencies grows.
type RouterConfig struct {
	Registry *mesh.Registry
	Logger   *zap.Logger
}

// NewRouter builds and returns the fully configured Chi router: the four
// mesh endpoints, plus the ambient /healthz and /mesh/metrics endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware ---
	// RequestID generates a unique ID for each request, used in logs and
	// response headers for tracing.
	r.Use(middleware.RequestID)

	// RealIP extracts the real client IP from X-Forwarded-For or X-Real-IP
	// headers when the server runs behind a reverse proxy.
	r.Use(middleware.RealIP)

	// RequestLogger logs every request with method, path, status and latency.
	r.Use(RequestLogger(cfg.Logger))

	// Recoverer catches panics in handlers, logs them, and returns a 500
	// instead of crashing the server.
	r.Use(middleware.Recoverer)

	h := NewHandler(cfg.Registry, cfg.Logger)

	r.Get("/healthz", handleHealthz)
	r.Handle("/mesh/metrics", promhttp.Handler())

	r.HandleFunc("/mesh/register", h.Register)
	r.HandleFunc("/mesh/nodes", h.Nodes)
	r.HandleFunc("/mesh/events", h.Events)
	r.HandleFunc("/mesh/logs", h.Logs)

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	plaintextResponse(w, http.StatusOK, "ok\n")
}
