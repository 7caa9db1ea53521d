package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/calibd"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/policy"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/results"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
)

func main() {
	var configPath string
	var grpcAddr string
	var httpAddr string
	var logLevel string
	var logJSON bool

	flag.StringVar(&configPath, "config", "", "path to YAML config (defaults when empty)")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides config)")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	flag.BoolVar(&logJSON, "log-json", false, "emit JSON log records")
	flag.Parse()

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	if grpcAddr == "" {
		grpcAddr = cfg.Server.GRPCAddr
	}
	if httpAddr == "" {
		httpAddr = cfg.Server.HTTPAddr
	}
	if logJSON {
		logger.SetDefault(logger.New(logLevel, os.Stdout))
	} else {
		logger.SetDefault(logger.NewText(logLevel, os.Stdout))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	runner, err := experiment.NewRunnerFromConfig(cfg, nil)
	if err != nil {
		logger.Error("failed to create experiment runner", "error", err)
		stop()
		os.Exit(1)
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Error("failed to close runner", "error", err)
		}
	}()

	records, err := results.Open(cfg.Storage)
	if err != nil {
		logger.Error("failed to open result store", "driver", cfg.Storage.Driver, "error", err)
		stop()
		os.Exit(1)
	}
	notifier := calibd.NewNotifier(cfg.Server.Callbacks)
	opts := []calibd.ExecutorOption{calibd.WithNotifier(notifier)}
	if records != nil {
		opts = append(opts, calibd.WithResultStore(records))
		defer func() {
			if err := records.Close(); err != nil {
				logger.Error("failed to close result store", "error", err)
			}
		}()
	}

	if limiter := policy.NewRateLimiter(cfg.Server.RateLimitPerSecond); limiter.Enabled() {
		opts = append(opts, calibd.WithRateLimiter(limiter))
	}

	store := calibd.NewJobStore()
	executor := calibd.NewExecutor(store, runner, cfg, opts...)

	// TODO: Configure gRPC server security (e.g., TLS, authentication)
	// before using this service in a production environment.
	grpcServer := grpc.NewServer()
	calibd.RegisterCalibrationServiceServer(grpcServer, calibd.NewCalibrationGRPCServer(store, executor))

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", grpcAddr, "error", err)
		stop()
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           calibd.NewHTTPServer(store, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("gRPC server listening", "addr", grpcAddr, "mode", runner.Mode())
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	executor.StopAll()
	executor.Wait()
	notifier.Wait()
}
