package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"casedata/internal/database"
	"casedata/internal/validation"

	"github.com/danielgtaylor/huma/v2"
)

// SchemaHandlers handles schema-related API requests.
type SchemaHandlers struct {
	store     database.SchemaProvider
	validator validation.SchemaValidator
}

// NewSchemaHandlers registers schema handlers with the API.
func NewSchemaHandlers(api huma.API, store database.SchemaProvider, validator validation.SchemaValidator) {
	h := &SchemaHandlers{
		store:     store,
		validator: validator,
	}

	huma.Register(api, huma.Operation{
		OperationID: "create-schema",
		Method:      http.MethodPost,
		Path:        "/api/v1/schemas",
		Summary:     "Create or update a schema",
		Tags:        []string{"Schemas"},
	}, h.CreateSchema)

	huma.Register(api, huma.Operation{
		OperationID: "list-schemas",
		Method:      http.MethodGet,
		Path:        "/api/v1/schemas",
		Summary:     "List schemas",
		Tags:        []string{"Schemas"},
	}, h.ListSchemas)

	huma.Register(api, huma.Operation{
		OperationID: "get-schema",
		Method:      http.MethodGet,
		Path:        "/api/v1/schemas/{name}",
		Summary:     "Get a schema",
		Tags:        []string{"Schemas"},
	}, h.GetSchema)

	huma.Register(api, huma.Operation{
		OperationID: "delete-schema",
		Method:      http.MethodDelete,
		Path:        "/api/v1/schemas/{name}",
		Summary:     "Delete a schema",
		Tags:        []string{"Schemas"},
	}, h.DeleteSchema)
}

// Inputs/Outputs

type CreateSchemaInput struct {
	Body struct {
		Name    string          `json:"name" minLength:"1"`
		Content json.RawMessage `json:"content"`
	}
}

type SchemaNameInput struct {
	Name string `path:"name"`
}

type GetSchemaOutput struct {
	Body struct {
		Content json.RawMessage `json:"content"`
	}
}

type ListSchemasOutput struct {
	Body []*database.Schema
}

const supportedSchema = "http://json-schema.org/draft-07/schema"

// Handlers

// CreateSchema creates or updates a schema.
func (h *SchemaHandlers) CreateSchema(ctx context.Context, input *CreateSchemaInput) (*struct{}, error) {
	// Parse content to check/set $schema
	var schemaMap map[string]interface{}
	if err := json.Unmarshal(input.Body.Content, &schemaMap); err != nil {
		return nil, huma.Error400BadRequest("Invalid JSON content: " + err.Error())
	}

	if val, ok := schemaMap["$schema"]; ok {
		version, ok := val.(string)
		if !ok {
			return nil, huma.Error400BadRequest("$schema must be a string")
		}
		if version != supportedSchema && version != supportedSchema+"#" {
			return nil, huma.Error400BadRequest("Unsupported schema version. Only " + supportedSchema + " is supported.")
		}
	} else {
		schemaMap["$schema"] = supportedSchema
	}

	content, err := json.MarshalIndent(schemaMap, "", "  ")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to process schema: " + err.Error())
	}

	if err := h.validator.CheckSchema(string(content)); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	if err := h.store.CreateSchema(ctx, input.Body.Name, string(content)); err != nil {
		slog.Error("CreateSchema: Failed to store schema", "name", input.Body.Name, "error", err)
		return nil, huma.Error500InternalServerError(err.Error())
	}
	slog.Info("CreateSchema: Stored schema", "name", input.Body.Name)
	return nil, nil
}

// ListSchemas lists all stored schemas.
func (h *SchemaHandlers) ListSchemas(ctx context.Context, input *struct{}) (*ListSchemasOutput, error) {
	schemas, err := h.store.ListSchemas(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	if schemas == nil {
		schemas = []*database.Schema{}
	}
	return &ListSchemasOutput{Body: schemas}, nil
}

// GetSchema retrieves a schema by name.
func (h *SchemaHandlers) GetSchema(ctx context.Context, input *SchemaNameInput) (*GetSchemaOutput, error) {
	content, err := h.store.GetSchema(ctx, input.Name)
	if err != nil {
		return nil, httpError(err)
	}
	resp := &GetSchemaOutput{}
	resp.Body.Content = json.RawMessage(content)
	return resp, nil
}

// DeleteSchema deletes a schema by name.
func (h *SchemaHandlers) DeleteSchema(ctx context.Context, input *SchemaNameInput) (*struct{}, error) {
	if err := h.store.DeleteSchema(ctx, input.Name); err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return nil, nil
}
