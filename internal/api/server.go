// ABOUTME: HTTP server struct, constructor, and handler wiring.
// ABOUTME: Holds auth dependencies (store, config, argon2 semaphore) used by handlers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/fixbay/workshop-ops/internal/config"
	"github.com/fixbay/workshop-ops/internal/rbac"
	"github.com/fixbay/workshop-ops/internal/store"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store       *store.Store
	cfg         *config.Config
	argon2Sem   chan struct{}
	rateLimiter *ipRateLimiter
}

// NewServer creates a Server.
func NewServer(s *store.Store, cfg *config.Config) *Server {
	sem := make(chan struct{}, cfg.Argon2MaxConcurrent)
	evictTTL := cfg.RateLimitEvictTTL
	if evictTTL == 0 {
		evictTTL = 15 * time.Minute
	}
	// 10 requests per minute, burst of 10.
	rl := newIPRateLimiter(rate.Limit(10.0/60), 10, evictTTL)
	return &Server{
		store:       s,
		cfg:         cfg,
		argon2Sem:   sem,
		rateLimiter: rl,
	}
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	var db *pgxpool.Pool
	if srv.store != nil {
		db = srv.store.Pool()
	}
	r := chi.NewRouter()

	// Security headers first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 1 MB global body limit — protect against OOM from large request bodies.
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.Recoverer)

	// Infrastructure endpoints.
	r.Get("/healthz", healthzHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	// API v1 sub-router. Auth endpoints go through huma (OpenAPI 3.1);
	// resource endpoints are plain chi so RBAC middleware composes per route.
	apiRouter := chi.NewRouter()
	// Credential endpoints get per-IP rate limiting. Applied here as a chi
	// middleware with a path guard because the handlers themselves are
	// registered through the huma adapter.
	limit := srv.authRateLimit()
	apiRouter.Use(func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/v1/auth/login", "/api/v1/auth/register":
				limited.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	})
	humaConfig := huma.DefaultConfig("Workshop Ops API", "0.1.0")
	humaConfig.Info.Description = "Machinery repair workshop management API"
	api := humachi.New(apiRouter, humaConfig)
	registerAuthRoutes(api, srv)

	apiRouter.Group(func(r chi.Router) {
		r.Use(srv.RequireAuthenticated())

		r.Get("/auth/me", srv.meHandler)

		r.Route("/customers", func(r chi.Router) {
			r.With(srv.RequirePermission(rbac.ActionCustomerCreate)).Post("/", srv.createCustomerHandler)
			r.With(srv.RequirePermission(rbac.ActionCustomerRead)).Get("/", srv.searchCustomersHandler)
			r.With(srv.RequirePermission(rbac.ActionCustomerRead)).Get("/{ref}", srv.getCustomerHandler)
			r.With(srv.RequirePermission(rbac.ActionCustomerUpdate)).Put("/{ref}", srv.updateCustomerHandler)
		})

		r.Route("/products", func(r chi.Router) {
			r.With(srv.RequirePermission(rbac.ActionProductCreate)).Post("/", srv.createProductHandler)
			r.With(srv.RequirePermission(rbac.ActionProductRead)).Get("/{code}", srv.getProductHandler)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.With(srv.RequirePermission(rbac.ActionJobCreate)).Post("/", srv.createJobHandler)
			r.With(srv.RequirePermission(rbac.ActionJobRead)).Get("/", srv.listJobsHandler)
			r.With(srv.RequirePermission(rbac.ActionJobRead)).Get("/{code}", srv.getJobHandler)
			r.With(srv.RequirePermission(rbac.ActionJobUpdateStatus)).Patch("/{code}/status", srv.updateJobStatusHandler)
			r.With(srv.RequirePermission(rbac.ActionJobAssign)).Post("/{code}/assign", srv.assignJobHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(srv.RequirePermission(rbac.ActionStaffCreate)).Post("/", srv.createStaffHandler)
			r.With(srv.RequirePermission(rbac.ActionStaffCreate)).Get("/", srv.listStaffHandler)
			r.With(srv.RequirePermission(rbac.ActionStaffDelete)).Delete("/{id}", srv.deleteStaffHandler)
		})

		r.With(srv.RequirePermission(rbac.ActionOrgCreate)).Post("/orgs", srv.createOrgHandler)
	})

	r.Mount("/api/v1", apiRouter)

	return r
}

// acquireArgon2 tries to acquire the argon2 semaphore. Returns false if all
// slots are in use — the caller should return 503 immediately (do NOT block).
func (srv *Server) acquireArgon2() bool {
	select {
	case srv.argon2Sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (srv *Server) releaseArgon2() { <-srv.argon2Sem }

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func healthzHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		if db == nil {
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "healthz: failed to encode response", "error", err)
		}
	}
}
