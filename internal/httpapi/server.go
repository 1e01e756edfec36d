package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/aengwo/rfid-project/internal/campus/service"
	"github.com/aengwo/rfid-project/internal/metrics"
)

type Dependencies struct {
	Logger             *zap.Logger
	Addr               string
	DB                 *sql.DB
	Metrics            *metrics.Metrics
	CORSAllowedOrigins []string

	Evaluator        *service.Evaluator
	Occupancy        *service.Occupancy
	Reporting        *service.Reporting
	Directory        *service.Directory
	Wallet           *service.Wallet
	Readers          *service.ReaderRegistry
	HeartbeatService *service.HeartbeatService
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	db         *sql.DB
	metrics    *metrics.Metrics

	evaluator  *service.Evaluator
	occupancy  *service.Occupancy
	reporting  *service.Reporting
	directory  *service.Directory
	wallet     *service.Wallet
	readers    *service.ReaderRegistry
	heartbeats *service.HeartbeatService
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:     logger,
		db:         d.DB,
		metrics:    d.Metrics,
		evaluator:  d.Evaluator,
		occupancy:  d.Occupancy,
		reporting:  d.Reporting,
		directory:  d.Directory,
		wallet:     d.Wallet,
		readers:    d.Readers,
		heartbeats: d.HeartbeatService,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(logger))
	r.Use(metricsMiddleware(d.Metrics))
	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scan", s.handleScan)

		r.Get("/stats", s.handleStats)
		r.Get("/population", s.handlePopulation)
		r.Get("/occupants", s.handleOccupants)
		r.Get("/weekly-pattern", s.handleWeeklyPattern)
		r.Get("/dwell-hours", s.handleDwellHours)
		r.Get("/campus-traffic", s.handleCampusTraffic)
		r.Get("/access-logs", s.handleAccessLogs)
		r.Get("/access-logs/export", s.handleExport)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleGetUser)
			r.Put("/{id}", s.handleUpdateUser)
			r.Delete("/{id}", s.handleDeleteUser)
			r.Post("/{id}/top-ups", s.handleTopUp)
			r.Post("/{id}/withdrawals", s.handleWithdraw)
			r.Get("/{id}/transactions", s.handleTransactions)
		})
		r.Post("/payments/callback", s.handlePaymentCallback)
		r.Post("/service-payments", s.handleServicePayment)

		r.Post("/readers/heartbeat", s.handleHeartbeat)
		r.Get("/readers", s.handleListReaders)
		r.Put("/readers/{id}", s.handleRegisterReader)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
