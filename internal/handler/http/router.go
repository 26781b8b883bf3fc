package http

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-tracker/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// RouterOptions carries the ambient settings shared by both routers.
type RouterOptions struct {
	App            string
	Version        string
	Env            string
	AllowedOrigins []string
	LogLevel       slog.Level
}

func newRequestLogger(opts RouterOptions) func(http.Handler) http.Handler {
	logFormat := httplog.SchemaECS.Concise(opts.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", opts.App),
		slog.String("version", opts.Version),
		slog.String("env", opts.Env),
	)

	return httplog.RequestLogger(logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	})
}

func newCORS(opts RouterOptions) func(http.Handler) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	})
}

// Health reports whether the service can serve requests. The agent's network
// monitor probes it; any 5xx counts as offline.
func Health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				slog.Warn("Health check failed", "error", err)
				response.ServiceUnavailable(w, "database unavailable")
				return
			}
		}
		response.Success(w, map[string]string{"status": "ok"})
	}
}

// NewRouter builds the attendance api.
func NewRouter(jwtService jwt.Service, attendanceHandler AttendanceHandler, ping func(ctx context.Context) error, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(newCORS(opts))
	r.Use(newRequestLogger(opts))
	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", Health(ping))

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(jwtService.JWTAuth()))
			r.Use(middleware.AuthRequired(jwtService))

			r.Route("/attendance", func(r chi.Router) {
				r.Post("/punch-in", attendanceHandler.PunchIn)
				r.Post("/punch-out", attendanceHandler.PunchOut)
				r.Post("/breaks/start", attendanceHandler.StartBreak)
				r.Post("/breaks/end", attendanceHandler.EndBreak)
				r.Post("/idle", attendanceHandler.RecordIdle)

				r.Get("/status", attendanceHandler.Status)
				r.Get("/summary", attendanceHandler.Summary)
				r.Get("/", attendanceHandler.List)

				r.Route("/settings", func(r chi.Router) {
					r.Get("/", attendanceHandler.GetSettings)

					// Admin only
					r.Group(func(r chi.Router) {
						r.Use(middleware.AdminOnly)
						r.Put("/", attendanceHandler.UpdateSettings)
					})
				})

				r.Get("/{id}", attendanceHandler.Get)
			})
		})
	})
	return r
}

// NewAgentRouter builds the agent's local surface. It listens on loopback
// only, so it carries no authentication.
func NewAgentRouter(trackerHandler TrackerHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(newCORS(opts))
	r.Use(newRequestLogger(opts))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", Health(nil))

	r.Route("/api/v1/tracker", func(r chi.Router) {
		r.Post("/punch-in", trackerHandler.PunchIn)
		r.Post("/punch-out", trackerHandler.PunchOut)
		r.Post("/breaks/start", trackerHandler.StartBreak)
		r.Post("/breaks/end", trackerHandler.EndBreak)

		r.Post("/activity", trackerHandler.Activity)
		r.Post("/idle/start", trackerHandler.StartIdle)
		r.Post("/idle/end", trackerHandler.EndIdle)

		r.Post("/sync/now", trackerHandler.SyncNow)
		r.Post("/sync/retry", trackerHandler.RetryFailed)
		r.Get("/queue", trackerHandler.Queue)
		r.Delete("/queue/{id}", trackerHandler.DiscardQueueItem)
		r.Get("/state", trackerHandler.State)
		r.Get("/events", trackerHandler.Events)
	})
	return r
}
