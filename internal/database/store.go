package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("case data not found")
	ErrVersionConflict = errors.New("case data version already exists")
	ErrSchemaNotFound  = errors.New("schema not found")
)

// CaseData is one stored version of a case's data document.
// Data holds the serialized JSON document.
type CaseData struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	CaseID     string    `json:"caseId" bson:"caseId"`
	Version    int       `json:"version" bson:"version"`
	SchemaName string    `json:"schemaName,omitempty" bson:"schemaName,omitempty"`
	Data       string    `json:"data" bson:"data"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Schema is a named JSON schema that case data can be validated against.
type Schema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

// CaseDataStore defines the interface for database operations on case data.
// Versions are append-only; AppendVersion returns ErrVersionConflict when
// the version is already taken or the version before it does not exist,
// which callers use as an optimistic lock.
type CaseDataStore interface {
	GetLatest(ctx context.Context, caseID string) (*CaseData, error)
	GetVersion(ctx context.Context, caseID string, version int) (*CaseData, error)
	ListVersions(ctx context.Context, caseID string, offset, limit int) ([]*CaseData, error)
	AppendVersion(ctx context.Context, data *CaseData) error
	DeleteCase(ctx context.Context, caseID string) error
}

// SchemaProvider defines the interface for retrieving case data schemas.
type SchemaProvider interface {
	GetSchema(ctx context.Context, name string) (string, error)
	ListSchemas(ctx context.Context) ([]*Schema, error)
	CreateSchema(ctx context.Context, name, content string) error
	DeleteSchema(ctx context.Context, name string) error
}
