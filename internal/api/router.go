package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Toasterson/akh-medu-sub004/internal/api/handlers"
	mw "github.com/Toasterson/akh-medu-sub004/internal/api/middleware"
	"github.com/Toasterson/akh-medu-sub004/internal/buildconfig"
	"github.com/Toasterson/akh-medu-sub004/internal/config"
	"github.com/Toasterson/akh-medu-sub004/internal/domain"
	"github.com/Toasterson/akh-medu-sub004/internal/service"
	"github.com/Toasterson/akh-medu-sub004/internal/store"
	"github.com/Toasterson/akh-medu-sub004/internal/tms"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router     *chi.Mux
	GC         *store.GCService
	Retraction *service.RetractionService

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *store.DB, logger *zap.Logger) (*App, error) {
	// Stores
	ledger, err := store.NewLedger(db, logger)
	if err != nil {
		return nil, err
	}
	resolver, err := store.NewResolver(db, logger)
	if err != nil {
		return nil, err
	}

	// Services
	provenanceSvc := service.NewProvenanceService(ledger, resolver, logger)
	provenanceSvc.ExplainMaxDepth = config.ExplainMaxDepth()
	retractionSvc := service.NewRetractionService(tms.New(), ledger, logger)

	// Handlers
	provenanceHandler := handlers.NewProvenanceHandler(provenanceSvc)
	truthHandler := handlers.NewTruthHandler(retractionSvc, provenanceSvc)
	entityHandler := handlers.NewEntityHandler(resolver)

	r := chi.NewRouter()

	app := &App{
		Router:     r,
		GC:         store.NewGCService(db, logger),
		Retraction: retractionSvc,
		startTime:  time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/records", func(r chi.Router) {
			r.Post("/", provenanceHandler.Create)
			r.Post("/batch", provenanceHandler.CreateBatch)
			r.Get("/", provenanceHandler.List)
			r.Get("/{id}", provenanceHandler.GetByID)
		})

		r.Post("/support", truthHandler.AddSupport)
		r.Post("/retract", truthHandler.Retract)

		r.Route("/entities", func(r chi.Router) {
			r.Post("/resolve", entityHandler.Resolve)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", entityHandler.Name)
				r.Get("/confidence", truthHandler.Confidence)
				r.Get("/explain", truthHandler.Explain)
			})
		})
	})

	return app, nil
}

func healthHandler(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db.IsClosed() {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{
				"status": "error",
				"error":  "store is closed",
			})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"commit":  buildconfig.Commit(),
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		writeStatus(w, http.StatusOK, map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		})
	}
}

func writeStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Ensure stores satisfy the domain interfaces at compile time.
var (
	_ domain.Ledger   = (*store.Ledger)(nil)
	_ domain.Resolver = (*store.Resolver)(nil)
)
