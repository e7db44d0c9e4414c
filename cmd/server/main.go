package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/server"
)

func main() {
	cfg := config.LoadOrDefault()

	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Server host")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (debug logs)")
	adapterFile := flag.String("config", cfg.AdapterFile, "Adapter configuration file (.yaml, .toml or .json)")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Logging.Development = *dev
	cfg.AdapterFile = *adapterFile

	file, err := config.LoadAdapter(cfg.AdapterFile)
	if err != nil {
		log.Fatalf("Failed to load adapter config: %v", err)
	}

	srv, err := server.NewServer(cfg, file)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		srv.Close()
		os.Exit(1)
	}
}
