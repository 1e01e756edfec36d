// Package grpcapi exposes the standard gRPC health service so load
// balancers and orchestrators can probe the gatehouse over gRPC.
package grpcapi

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "gatehouse.v1.Gate"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	// How often the database is probed. Default 5s.
	CheckInterval time.Duration
	// Per-probe deadline. Default 2s.
	CheckTimeout time.Duration
}

type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	db     Pinger
	opt    Options
	logger *zap.Logger

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHealthServer(db Pinger, opt Options, logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opt.CheckInterval <= 0 {
		opt.CheckInterval = 5 * time.Second
	}
	if opt.CheckTimeout <= 0 {
		opt.CheckTimeout = 2 * time.Second
	}

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &HealthServer{
		grpc:   gs,
		health: hs,
		db:     db,
		opt:    opt,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Serve runs one database probe, starts the watcher, then serves lis until
// Stop is called.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.mu.Lock()
	if !s.started {
		s.started = true
		ctx, s.cancel = context.WithCancel(ctx)
		s.check(ctx)
		go s.watch(ctx)
	}
	s.mu.Unlock()
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *HealthServer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
			<-s.done
		}
		s.health.Shutdown()
		s.grpc.GracefulStop()
	})
}

func (s *HealthServer) watch(ctx context.Context) {
	defer close(s.done)

	t := time.NewTicker(s.opt.CheckInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.check(ctx)
		}
	}
}

func (s *HealthServer) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		pctx, cancel := context.WithTimeout(ctx, s.opt.CheckTimeout)
		err := s.db.PingContext(pctx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("grpc health: database unreachable", zap.Error(err))
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
