package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/heysubinoy/rollbook/internal/api"
	"github.com/heysubinoy/rollbook/internal/service"
	"github.com/heysubinoy/rollbook/internal/store"
	"github.com/heysubinoy/rollbook/pkg/config"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		hclog.Default().Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "rollbook-single",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	// Create the in-memory store
	instrumented := store.NewInstrumentedStore(store.NewMemStore())
	roster := service.New(instrumented, cfg.DataDir, logger.Named("service"))

	if cfg.DataFile != "" {
		loaded, err := roster.LoadIfPresent(cfg.DataFile)
		if err != nil {
			logger.Error("failed to load data file", "file", cfg.DataFile, "error", err)
			os.Exit(1)
		}
		if !loaded {
			logger.Info("data file not found, starting empty", "file", cfg.DataFile)
		}
	}

	// Start gRPC server in a goroutine
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	api.RegisterStudentServiceServer(grpcServer, api.NewGRPCServer(roster))
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server stopped", "error", err)
		}
	}()

	// Create the HTTP server with the roster
	srv := api.NewServer(roster, nil, cfg.HTTPAddr, logger.Named("http"))
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	mux.HandleFunc("/metrics", api.MetricsHandler(instrumented))

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()

	if cfg.DataFile != "" {
		if err := roster.SaveToDestination(cfg.DataFile); err != nil {
			logger.Error("failed to save data file", "file", cfg.DataFile, "error", err)
			os.Exit(1)
		}
	}
}
