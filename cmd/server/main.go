// Command server runs the credledger HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credledger/internal/bootstrap"
	"credledger/internal/config"
	"credledger/internal/observability"
	"credledger/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rt, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{ServiceName: "credledger-api"})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv := server.NewServer(rt)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		observability.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			observability.Logger.Error("server shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		observability.Logger.Error("server stopped", "error", err)
	}
	if err := rt.Close(); err != nil {
		observability.Logger.Error("runtime close error", "error", err)
		os.Exit(1)
	}
}
