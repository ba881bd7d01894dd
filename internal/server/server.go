package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-eco/internal/api"
	"github.com/joeblew999/plat-eco/internal/config"
	"github.com/joeblew999/plat-eco/internal/dashboard"
	"github.com/joeblew999/plat-eco/internal/db"
	"github.com/joeblew999/plat-eco/internal/gateway"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string // DuckDB run history; empty keeps it in memory
	WebDir  string // optional directory with static/ and templates/
	App     *config.Config
	Logger  *zap.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	store    *service.Store
	renderer *templates.Renderer
	logger   *zap.Logger
}

// New creates the dashboard server. Run history is optional: the server
// starts without it when DuckDB cannot be opened.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.App == nil {
		app, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg.App = app
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-eco API", api.Version)
	humaConfig.Info.Description = "Environmental analysis dashboard: region setup, layer analyses and run history."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	renderer, err := newRenderer(cfg.WebDir, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		renderer: renderer,
		logger:   logger,
	}

	var runs *db.RunStore
	conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "eco"})
	if err == nil {
		runs, err = db.NewRunStore(context.Background(), conn)
	}
	if err != nil {
		logger.Warn("Run history disabled", zap.Error(err))
		if conn != nil {
			conn.Close()
		}
	} else {
		s.db = conn
	}

	backend := gateway.New(gateway.Config{
		BaseURL:          cfg.App.Backend.URL,
		Timeout:          cfg.App.Backend.Timeout,
		TrustedTileHosts: cfg.App.Backend.TrustedTileHosts,
	}, logger)

	storeCfg := service.StoreConfig{
		Backend: backend,
		NewView: dashboard.Factory(renderer, logger),
		Params: service.Params{
			StartDate:  cfg.App.Analysis.StartDate,
			EndDate:    cfg.App.Analysis.EndDate,
			Resolution: cfg.App.Analysis.Resolution,
		},
		Pace:   cfg.App.Analysis.Pace,
		TTL:    cfg.App.Session.TTL,
		Logger: logger,
	}
	if runs != nil {
		storeCfg.Runs = runs
	}
	s.store = service.NewStore(storeCfg)

	s.routes(backend, runs)
	s.handler = s.middleware(mux)
	return s, nil
}

func newRenderer(webDir string, logger *zap.Logger) (*templates.Renderer, error) {
	if webDir != "" {
		dir := filepath.Join(webDir, "templates")
		if _, err := os.Stat(filepath.Join(dir, "fragments")); err == nil {
			r, err := templates.NewFromDir(dir)
			if err != nil {
				return nil, fmt.Errorf("load templates from %s: %w", dir, err)
			}
			logger.Info("Loaded templates", zap.String("dir", dir))
			return r, nil
		}
	}
	return templates.New()
}

func (s *Server) routes(backend *gateway.Client, runs *db.RunStore) {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(&api.Services{
		Backend:  backend,
		Sessions: s.store,
	}))
	api.NewInfoHandler(s.config.DataDir, s.config.App.Backend.URL, runs != nil).RegisterRoutes(s.humaAPI)

	var lister api.RunLister
	if runs != nil {
		lister = runs
	}
	api.NewRunsHandler(lister).RegisterRoutes(s.humaAPI)

	// Dashboard SSE routes using Huma + Datastar SDK
	dash := dashboard.NewHandler(s.store, s.renderer, s.logger)
	dash.RegisterRoutes(s.humaAPI)

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("/", dash.Page)
}

// middleware wraps h with tracing and, when origins are configured, CORS.
func (s *Server) middleware(h http.Handler) http.Handler {
	if origins := s.config.App.HTTP.AllowedOrigins; len(origins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", "Datastar-Request"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return otelhttp.NewHandler(h, "plat-eco")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions returns the dashboard session store.
func (s *Server) Sessions() *service.Store {
	return s.store
}

// Run expires idle sessions until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.store.Run(ctx, s.config.App.Session.SweepInterval)
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
