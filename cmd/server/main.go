package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/page-modules/pkg/pagemodules/config"
)

func main() {
	showEnv := flag.Bool("env-help", false, "print the environment variables and exit")
	port := flag.String("port", "", "HTTP listen port (overrides PORT)")
	flag.Parse()

	if *showEnv {
		help, err := config.EnvHelp()
		if err != nil {
			slog.Error("Failed to describe environment", "err", err)
			os.Exit(1)
		}
		fmt.Println(help)
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env", "err", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	opts := []config.Option{config.WithEnv()}
	if *port != "" {
		opts = append(opts, config.WithPort(*port))
	}
	serverConfig, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	rt, err := serverConfig.BuildService(ctx, logger)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	if serverConfig.SeedDemoData {
		if err := seedDemoData(rt.Repository); err != nil {
			slog.Warn("Demo data not seeded", "err", err)
		}
	}

	handler, err := newRouter(rt.Service, serverConfig, logger)
	if err != nil {
		slog.Error("Failed to build router", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Page modules server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"snapshots", serverConfig.Snapshot.Type,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}

	slog.Info("Server exiting")
}
