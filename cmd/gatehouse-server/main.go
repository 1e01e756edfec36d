package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/aengwo/rfid-project/internal/cache"
	"github.com/aengwo/rfid-project/internal/campus/notify"
	"github.com/aengwo/rfid-project/internal/campus/service"
	sqlitestore "github.com/aengwo/rfid-project/internal/campus/store/sqlite"
	"github.com/aengwo/rfid-project/internal/config"
	"github.com/aengwo/rfid-project/internal/db"
	"github.com/aengwo/rfid-project/internal/grpcapi"
	"github.com/aengwo/rfid-project/internal/httpapi"
	"github.com/aengwo/rfid-project/internal/logging"
	"github.com/aengwo/rfid-project/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gatehouse-server:", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading GATEHOUSE_* variables")
	httpAddr := pflag.String("http-addr", "", "HTTP listen address (overrides GATEHOUSE_HTTP_ADDR)")
	grpcAddr := pflag.String("grpc-addr", "", "gRPC health listen address (overrides GATEHOUSE_GRPC_ADDR)")
	dbPath := pflag.String("db-path", "", "SQLite database path (overrides GATEHOUSE_DB_PATH)")
	seedDev := pflag.Bool("seed-dev", false, "insert demo reader and users")
	pflag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *grpcAddr != "" {
		cfg.GRPCAddr = *grpcAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if pflag.CommandLine.Changed("seed-dev") {
		cfg.SeedDev = *seedDev
	}

	logger, err := logging.New(logging.Config{
		ServiceName: "gatehouse",
		Environment: cfg.Env,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env, MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()

	if cfg.SeedDev {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
			return fmt.Errorf("seed dev: %w", err)
		}
		logger.Info("dev seed applied")
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	// Stores
	directoryStore := sqlitestore.NewDirectoryStore(conn, writer)
	logStore := sqlitestore.NewAccessLogStore(conn, writer)
	reportStore := sqlitestore.NewReportStore(conn)
	readerStore := sqlitestore.NewReaderStore(conn, writer)
	heartbeatStore := sqlitestore.NewHeartbeatStore(conn, writer)
	walletStore := sqlitestore.NewWalletStore(conn, writer)

	// Optional integrations
	cacheCfg := cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.ReportCacheTTL,
	}
	rdb := cache.NewRedisClient(ctx, cacheCfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	reportCache := cache.New(rdb, cacheCfg, logger)

	var publisher notify.Publisher = notify.Noop{}
	if cfg.AMQPURL != "" {
		p := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
		defer p.Close()
		publisher = p
		logger.Info("access events published", zap.String("queue", cfg.AMQPQueue))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Services
	clock := service.Clock{Location: cfg.Location}
	readers := service.NewReaderRegistry(readerStore)
	evaluator := service.NewEvaluator(logStore, readers, service.EvaluatorOptions{
		ScanTimeout: cfg.ScanTimeout,
		Publisher:   publisher,
		Metrics:     m,
		Logger:      logger,
	})

	pruner := service.NewHeartbeatPruner(heartbeatStore, service.PrunerConfig{
		RetentionDays: cfg.HeartbeatRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:             logger,
		Addr:               cfg.HTTPAddr,
		DB:                 conn,
		Metrics:            m,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Evaluator:          evaluator,
		Occupancy:          service.NewOccupancy(logStore, reportStore, clock),
		Reporting:          service.NewReporting(reportStore, logStore, directoryStore, reportCache, clock),
		Directory:          service.NewDirectory(directoryStore),
		Wallet:             service.NewWallet(walletStore, directoryStore, logger),
		Readers:            readers,
		HeartbeatService:   service.NewHeartbeatService(heartbeatStore, readers, logger),
	})

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	// gRPC health
	var health *grpcapi.HealthServer
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		health = grpcapi.NewHealthServer(conn, grpcapi.Options{}, logger)
		go func() {
			logger.Info("grpc health listening", zap.String("addr", cfg.GRPCAddr))
			if err := health.Serve(ctx, lis); err != nil {
				logger.Error("grpc server error", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if health != nil {
		health.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}
