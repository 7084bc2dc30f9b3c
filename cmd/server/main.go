package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"pitalign/internal/app"
	"pitalign/internal/config"
	"pitalign/internal/infrastructure"
	"pitalign/internal/security"
	"pitalign/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to ./config.yaml when present)")
	showVersion := flag.Bool("version", false, "print version and exit")
	hashKey := flag.String("hash-key", "", "print the scrypt hash of an API key for server.api_keys and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}
	if *hashKey != "" {
		hash, err := security.HashAPIKey(*hashKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	ctx := context.Background()
	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
