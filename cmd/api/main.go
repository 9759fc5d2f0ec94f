package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joy-platform/joy_token/internal/chain"
	"github.com/joy-platform/joy_token/internal/config"
	"github.com/joy-platform/joy_token/internal/infra"
	"github.com/joy-platform/joy_token/internal/ledger"
	"github.com/joy-platform/joy_token/internal/logging"
	"github.com/joy-platform/joy_token/internal/reconcile"
	"github.com/joy-platform/joy_token/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	var chainClient chain.Client
	if cfg.ChainRPCURL != "" {
		eth, err := infra.DialEthereum(ctx, cfg.ChainRPCURL)
		if err != nil {
			logger.Error("connect chain rpc", "error", err)
			os.Exit(1)
		}
		defer eth.Close()
		chainClient, err = chain.NewEVMClient(eth, cfg.TokenContractAddr, cfg.OperatorPrivateKey, cfg.ChainID)
		if err != nil {
			logger.Error("build chain client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("CHAIN_RPC_URL not set, using in-memory chain simulator")
		chainClient = chain.NewMemory(nil)
	}

	store := ledger.NewPostgresStore(db)

	reconciler := reconcile.New(store, chainClient, logger, cfg.ReconcileInterval)
	if err := reconciler.Start(ctx); err != nil {
		logger.Error("start reconciler", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := reconciler.Stop(); err != nil {
			logger.Warn("stop reconciler", "error", err)
		}
	}()

	srv, err := server.New(cfg, db, cache, store, chainClient, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
