package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
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

const leaderWait = 10 * time.Second

// joinCluster asks the node serving HTTP at joinAddr to add us as a voter.
// Redirects from followers are followed to the leader.
func joinCluster(joinAddr, nodeID, raftAddr string) error {
	body, err := json.Marshal(map[string]string{"id": nodeID, "addr": raftAddr})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(joinAddr+"/join", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", joinAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("join rejected (status: %d)", resp.StatusCode)
	}
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err == nil {
		err = cfg.ValidateRaft()
	}
	if err != nil {
		hclog.Default().Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "rollbook-node",
		Level: hclog.LevelFromString(cfg.LogLevel),
	}).With("node", cfg.NodeID)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	raftStore, err := store.OpenNode(store.NodeOptions{
		NodeID:    cfg.NodeID,
		RaftAddr:  cfg.RaftAddr,
		DataDir:   cfg.RaftData,
		Bootstrap: cfg.RaftLeader,
	}, store.NewMemStore(), logger)
	if err != nil {
		logger.Error("failed to start raft", "error", err)
		os.Exit(1)
	}
	defer raftStore.Close()

	if cfg.JoinAddr != "" {
		if err := joinCluster(cfg.JoinAddr, cfg.NodeID, cfg.RaftAddr); err != nil {
			logger.Error("failed to join cluster", "join_addr", cfg.JoinAddr, "error", err)
			os.Exit(1)
		}
		logger.Info("joined cluster", "join_addr", cfg.JoinAddr)
	}

	instrumented := store.NewInstrumentedStore(raftStore)
	roster := service.New(instrumented, cfg.DataDir, logger.Named("service"))

	// A fresh cluster seeds itself from data_file; the load is replicated.
	// Resumed or joined nodes already get their records from the raft log.
	if cfg.DataFile != "" && raftStore.Bootstrapped() {
		if err := raftStore.WaitForLeader(leaderWait); err != nil {
			logger.Error("failed to become leader", "error", err)
			os.Exit(1)
		}
		loaded, err := roster.LoadIfPresent(cfg.DataFile)
		if err != nil {
			logger.Error("failed to load data file", "file", cfg.DataFile, "error", err)
			os.Exit(1)
		}
		if !loaded {
			logger.Info("data file not found, starting empty", "file", cfg.DataFile)
		}
	}

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

	srv := api.NewServer(roster, raftStore, cfg.HTTPAddr, logger.Named("http"))
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

	// Save is local, so every replica writes its own copy.
	if cfg.DataFile != "" {
		if err := roster.SaveToDestination(cfg.DataFile); err != nil {
			logger.Error("failed to save data file", "file", cfg.DataFile, "error", err)
		}
	}
}
