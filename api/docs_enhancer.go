package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"casedata/internal/database"

	"github.com/danielgtaylor/huma/v2"
)

// EnhanceDocumentation registers the stored case data schemas as OpenAPI
// components so clients can see the document shapes the API accepts.
func EnhanceDocumentation(ctx context.Context, api huma.API, provider database.SchemaProvider) error {
	schemas, err := provider.ListSchemas(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schemas: %w", err)
	}

	registry := api.OpenAPI().Components.Schemas
	if registry == nil {
		return fmt.Errorf("OpenAPI components schemas registry is nil")
	}

	for _, schema := range schemas {
		var humaSchema huma.Schema
		if err := json.Unmarshal(schema.Schema, &humaSchema); err != nil {
			slog.Warn("EnhanceDocumentation: Failed to parse schema content", "name", schema.Name, "error", err)
			continue
		}

		registry.Map()[schema.Name] = &humaSchema
		slog.Info("EnhanceDocumentation: Registered OpenAPI schema", "name", schema.Name)
	}

	return nil
}
