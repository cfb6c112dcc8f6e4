package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"evoting-ledger/api"
	"evoting-ledger/registry"
	"evoting-ledger/service"
	"evoting-ledger/storage"
)

type Config struct {
	Port       string
	DataDir    string
	InMemory   bool
	SeedOracle bool
}

func parseFlags() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.Port, "port", "8080", "Port to run the server on")
	flag.StringVar(&cfg.DataDir, "data-dir", "data", "Directory for the ledger database")
	flag.BoolVar(&cfg.InMemory, "in-memory", false, "Run with an in-memory ledger (development only)")
	flag.BoolVar(&cfg.SeedOracle, "seed-oracle", true, "Seed the identity oracle with test subjects")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var (
		store *storage.Store
		err   error
	)
	if cfg.InMemory {
		store, err = storage.OpenInMemory()
	} else {
		store, err = storage.Open(cfg.DataDir)
	}
	if err != nil {
		log.Fatalf("Failed to open ledger store: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	metrics := service.NewMetrics(promRegistry)
	svc := service.NewElectionService(store, metrics)

	oracle := registry.NewMockOracle()
	if cfg.SeedOracle {
		oracle.SeedTestData()
	}

	server := api.NewServer(svc, oracle, promRegistry)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("Starting election server on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Printf("Store close error: %v", err)
	}
	log.Println("Server stopped")
}
