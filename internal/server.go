package internal

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"decor-inventory-api/internal/auth"
	"decor-inventory-api/internal/config"
	"decor-inventory-api/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	DB         *sql.DB
	Pool       *pgxpool.Pool
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Log        zerolog.Logger
}

func NewServer(dsn string, cfg *config.Config) *Server {
	logger := log.With().Str("component", "server").Logger()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database connection")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("database ping failed")
	}

	// Also create a pgxpool for the importer
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pgxpool")
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		logger.Fatal().Err(err).Msg("JWT configuration validation failed")
	}

	s := &Server{
		DB:         db,
		Pool:       pool,
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    NewMetrics(),
		Log:        logger,
	}
	s.routes(os.Getenv("ENABLE_METRICS") == "true")

	return s
}

// routes wires middleware and all endpoints. Chi requires every
// middleware before the first route, so the metrics middleware is
// attached here rather than next to the /metrics endpoint.
func (s *Server) routes(metricsEnabled bool) {
	s.Router.Use(requestLogger(s.Log))
	if metricsEnabled {
		s.Router.Use(s.Metrics.Middleware())
	}

	// Public routes first (no auth)
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		if _, err := w.Write([]byte("db: ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	// Public auth routes (no JWT required)
	s.Router.Post("/auth/login", s.loginUser)

	if metricsEnabled {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r)
	})
}

// Close properly shuts down the server and cleans up resources
func (s *Server) Close(ctx context.Context) error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// mountProtectedRoutes mounts all routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	// Inventory catalog - any authenticated user can read, writes need a role
	r.Get("/items", s.listItems)
	r.Get("/items/{id}", s.getItem)
	r.Post("/items", auth.MustRole("admin", "staff")(http.HandlerFunc(s.createItem)).(http.HandlerFunc))
	r.Put("/items/{id}", auth.MustRole("admin", "staff")(http.HandlerFunc(s.updateItem)).(http.HandlerFunc))
	r.Delete("/items/{id}", auth.MustRole("admin")(http.HandlerFunc(s.deleteItem)).(http.HandlerFunc))

	// Functions - booking and return workflows
	r.Get("/functions", s.listFunctions)
	r.Get("/functions/{id}", s.getFunction)
	r.Post("/functions", auth.MustRole("admin", "staff")(http.HandlerFunc(s.bookFunction)).(http.HandlerFunc))
	r.Post("/functions/{id}/return", auth.MustRole("admin", "staff")(http.HandlerFunc(s.returnFunction)).(http.HandlerFunc))

	// Dashboard stats
	r.Get("/stats", s.getStats)

	// Reconciliation - recompute assigned quantities from ongoing allocations
	r.Post("/admin/reconcile", auth.MustRole("admin")(http.HandlerFunc(s.reconcileItems)).(http.HandlerFunc))

	// Excel import of inventory items
	importsHandler := handlers.NewImportsHandler(s.Pool)
	r.Post("/imports/excel", auth.MustRole("admin")(http.HandlerFunc(importsHandler.UploadExcel)).(http.HandlerFunc))

	// User management - admin only
	r.Post("/users", auth.MustRole("admin")(http.HandlerFunc(s.createUser)).(http.HandlerFunc))
	r.Get("/users", auth.MustRole("admin")(http.HandlerFunc(s.listUsers)).(http.HandlerFunc))

	// Self-service routes
	r.Get("/auth/profile", s.getUserProfile)
	r.Put("/auth/change-password", s.changePassword)
}
