package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidDocument = errors.New("document does not match schema")

// SchemaValidator defines the interface for validating documents against JSON schemas.
type SchemaValidator interface {
	Validate(schema string, data []byte) error
	CheckSchema(schema string) error
}

// ValidationError lists the schema violations of a document.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidDocument.Error())
	b.WriteString(":\n")
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDocument
}

// JSONSchemaValidator implements SchemaValidator using gojsonschema.
// Compiled schemas are cached by their text.
type JSONSchemaValidator struct {
	compiled sync.Map
}

// NewJSONSchemaValidator creates a new JSONSchemaValidator.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{}
}

// Validate validates a JSON document against a JSON schema.
func (v *JSONSchemaValidator) Validate(schema string, data []byte) error {
	compiled, err := v.compile(schema)
	if err != nil {
		return err
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}

	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, desc := range result.Errors() {
		verr.Violations = append(verr.Violations, desc.String())
	}
	return verr
}

// CheckSchema reports whether schema compiles.
func (v *JSONSchemaValidator) CheckSchema(schema string) error {
	_, err := v.compile(schema)
	return err
}

func (v *JSONSchemaValidator) compile(schema string) (*gojsonschema.Schema, error) {
	if cached, ok := v.compiled.Load(schema); ok {
		return cached.(*gojsonschema.Schema), nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	v.compiled.Store(schema, compiled)
	return compiled, nil
}
