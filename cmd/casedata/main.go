package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"casedata/api"
	"casedata/config"
	"casedata/internal/cases"
	"casedata/internal/database"
	"casedata/internal/logger"
	"casedata/internal/validation"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Case data service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	closer := logger.Setup(cfg.Logging)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Database/Store
	var store database.CaseDataStore
	var schemas database.SchemaProvider

	switch cfg.Storage.Type {
	case "file":
		slog.Info("Using File Store (Local Mode)", "path", cfg.Storage.File.Path)
		fileStore, err := database.NewFileStore(cfg.Storage.File.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize file store: %w", err)
		}
		store, schemas = fileStore, fileStore
	case "mongodb":
		slog.Info("Using MongoDB Store", "database", cfg.Database.DatabaseName)
		mongoStore, err := database.NewMongoStore(ctx, cfg.Database.ConnectionString, cfg.Database.DatabaseName)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer mongoStore.Close(context.Background())
		store, schemas = mongoStore, mongoStore
	}

	if !cfg.Storage.DisableCache {
		caching := database.NewCachingStore(store, schemas)
		store, schemas = caching, caching
	}

	if err := cases.SeedSchemas(ctx, schemas, cfg.Schemas.SeedDir); err != nil {
		return fmt.Errorf("failed to seed schemas: %w", err)
	}

	// 3. Initialize Services
	validator := validation.NewJSONSchemaValidator()
	service := cases.NewService(store, schemas, validator, cases.Options{
		MaxRetries:    *cfg.Updates.MaxRetries,
		RetryInterval: cfg.Updates.RetryInterval,
	})

	// 4. Initialize API
	apiInstance := api.NewAPI()
	api.NewCaseHandlers(apiInstance.Huma, service)
	api.NewSchemaHandlers(apiInstance.Huma, schemas, validator)
	if err := api.EnhanceDocumentation(ctx, apiInstance.Huma, schemas); err != nil {
		slog.Warn("Failed to enhance API documentation", "error", err)
	}

	// 5. Start Server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Server listening", "addr", addr)
	return apiInstance.Start(ctx, addr)
}
