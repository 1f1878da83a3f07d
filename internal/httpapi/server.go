package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/olegrjumin/cookieguard/internal/logging"
	"github.com/olegrjumin/cookieguard/internal/metrics"
	"github.com/olegrjumin/cookieguard/internal/service"
)

// BrowserHealth reports browser pool usage for /health
type BrowserHealth interface {
	Health() (available, total int)
}

// Options holds the optional parts of the server
type Options struct {
	CORSOrigins []string
	Metrics     *metrics.Collector
	Browser     BrowserHealth
	Batch       service.BatchOptions
}

// NewServer creates and configures a new HTTP server
func NewServer(addr string, logger *logging.Logger, svc *service.Service, opts Options) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: NewRouter(logger, svc, opts),
	}
}

// NewRouter builds the route tree
func NewRouter(logger *logging.Logger, svc *service.Service, opts Options) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}

	r := chi.NewRouter()
	r.Use(loggingMiddleware(logger, opts.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler(opts.Browser))
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Route("/v1/evaluations", func(r chi.Router) {
		r.Post("/scan", scanHandler(svc))
		r.Post("/batch", batchHandler(svc, opts.Batch))
		r.Get("/{domain}", latestHandler(svc))
		r.Get("/{domain}/history", historyHandler(svc))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"msg": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"msg": "method not allowed"})
	})

	return r
}

// healthHandler handles GET requests to /health
// Returns a simple JSON response indicating the service is healthy
func healthHandler(browser BrowserHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"status":  "ok",
			"service": "cookieguard-api",
		}
		if browser != nil {
			available, total := browser.Health()
			response["browsers"] = map[string]int{"available": available, "total": total}
		}

		writeJSON(w, http.StatusOK, response)
	}
}

// writeJSON is a helper function to write JSON responses
// It sets the correct Content-Type header and encodes the data as JSON
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// If encoding fails, the error is ignored (acceptable for this simple case)
	json.NewEncoder(w).Encode(data)
}
