package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"casedata/internal/database"
)

// SeedSchemas populates the SchemaProvider with the *.json schemas found in
// schemasDir. Schemas that already exist are left alone.
func SeedSchemas(ctx context.Context, provider database.SchemaProvider, schemasDir string) error {
	entries, err := os.ReadDir(schemasDir)
	if err != nil {
		// It's okay if the directory doesn't exist
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read schemas directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		content, err := os.ReadFile(filepath.Join(schemasDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", entry.Name(), err)
		}
		if !json.Valid(content) {
			return fmt.Errorf("schema file %s is not valid JSON", entry.Name())
		}

		// Check if exists
		if _, err := provider.GetSchema(ctx, name); err == nil {
			slog.Debug("SeedSchemas: Schema already exists, skipping", "name", name)
			continue
		}

		if err := provider.CreateSchema(ctx, name, string(content)); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", name, err)
		}
		slog.Info("SeedSchemas: Seeded schema", "name", name)
	}

	return nil
}
