package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"casinolab/internal/config"
	"casinolab/internal/server"
)

func gracefulShutdown(s *server.FiberServer, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("[SERVER] Shutting down gracefully, press Ctrl+C again to force")
	stop()

	if err := s.Shutdown(); err != nil {
		log.Printf("[SERVER] Forced to shutdown with error: %v", err)
	}

	log.Println("[SERVER] Server exiting")
	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[SERVER] Invalid configuration: %v", err)
	}

	s, err := server.New(cfg)
	if err != nil {
		log.Fatalf("[SERVER] Startup failed: %v", err)
	}
	s.Start()

	done := make(chan bool, 1)
	go gracefulShutdown(s, done)

	log.Printf("[SERVER] Listening on :%d (%s)", cfg.Port, cfg.AppEnv)
	if err := s.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("[SERVER] http server error: %v", err)
	}

	<-done
	log.Println("[SERVER] Graceful shutdown complete.")
}
