package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/target/title-doctor/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Submissions *service.SubmissionService
	States      *service.JobStateService
	// Ready is checked by /readyz. Defaults to States.
	Ready HealthChecker
	// CORSAllowedOrigins is passed to the CORS middleware; empty disables it.
	CORSAllowedOrigins []string
	// MaxWait caps the long-poll duration of /api/jobs/{id}/wait.
	MaxWait time.Duration
	Logger  *slog.Logger
}

// NewRouter creates and configures the API router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Recover(logger))
	r.Use(Logging(logger))
	if len(services.CORSAllowedOrigins) > 0 {
		r.Use(corsMiddleware(services.CORSAllowedOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("route not found")})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{
			Code:    http.StatusMethodNotAllowed,
			ErrCode: "method_not_allowed",
			Err:     errors.New("method not allowed"),
		})
	})

	r.Get("/healthz", healthHandler)
	r.Head("/healthz", healthHandler)

	ready := services.Ready
	if ready == nil && services.States != nil {
		ready = services.States
	}
	r.Get("/readyz", readyHandler(ready, logger))

	jobs := &JobHandlers{
		Submissions: services.Submissions,
		States:      services.States,
		MaxWait:     services.MaxWait,
		Logger:      logger,
	}
	registerJobRoutes(r, jobs)

	return r
}

func registerJobRoutes(r chi.Router, h *JobHandlers) {
	r.Post("/submit", h.Submit)
	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", h.Submit)
		r.Get("/{id}", h.GetJob)
		r.Get("/{id}/wait", h.WaitJob)
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}
