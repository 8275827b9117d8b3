package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/drstein77/billing/internal/config"
	"github.com/drstein77/billing/internal/controllers"
	"github.com/drstein77/billing/internal/dbkeeper"
	"github.com/drstein77/billing/internal/logger"
	"github.com/drstein77/billing/internal/metrics"
	"github.com/drstein77/billing/internal/middleware"
	"github.com/drstein77/billing/internal/storage"
	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Server struct {
	srv     *http.Server
	ctx     context.Context
	options *config.Options
	keeper  *dbkeeper.DBKeeper
	Log     *logger.Logger
}

// NewServer reads the configuration and builds the logger. Nothing is
// connected until Serve.
func NewServer(ctx context.Context) *Server {
	// create and initialize a new option instance
	option := config.NewOptions()
	option.ParseFlags()

	// get a new logger
	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		log.Fatalln(err)
	}

	return &Server{
		ctx:     ctx,
		options: option,
		Log:     nLogger,
	}
}

// Serve connects to the database and serves HTTP until Shutdown is called.
func (server *Server) Serve() error {
	keeper, err := dbkeeper.NewDBKeeper(server.ctx, server.options.DataBaseDSN, server.options.MigrationsPath(), server.Log)
	if err != nil {
		server.Log.Error("Database is not available", zap.Error(err))
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	server.keeper = keeper

	m := metrics.New(server.options.MetricsPrefix())
	store := storage.NewStorage(keeper, m, server.options.DefaultStock(), server.Log)
	basecontr := controllers.NewBaseController(store, server.Log)

	// create router and mount routes
	r := newRouter(basecontr, m, server.Log, server.options.AllowedOrigins(), server.options.RequestTimeout())

	server.srv = &http.Server{
		Addr:              server.options.RunAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return server.ctx },
	}

	server.Log.Info("Server started", zap.String("address", server.options.RunAddr()))
	if err := server.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		server.Log.Error("Server stopped unexpectedly", zap.Error(err))
		keeper.Close()
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits up to timeout for in-flight ones
// and releases the database pool.
func (server *Server) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if server.srv != nil {
		if err := server.srv.Shutdown(ctx); err != nil {
			server.Log.Error("Server shutdown error", zap.Error(err))
		}
	}
	if server.keeper != nil {
		server.keeper.Close()
	}

	server.Log.Info("Server stopped")
	_ = server.Log.Sync()
}

func newRouter(basecontr *controllers.BaseController, m *metrics.Metrics, log *logger.Logger,
	allowedOrigins []string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Encoding", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(chimw.Timeout(requestTimeout))

	r.Handle("/metrics", m.Handler())
	r.Mount("/", basecontr.Route())
	return r
}
