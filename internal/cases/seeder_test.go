package cases

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"casedata/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedSchemas(t *testing.T) {
	tmpDir := t.TempDir()

	schemaContent := `{"type":"object"}`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "claim.json"), []byte(schemaContent), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("ignored"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "nested.json"), 0o755))

	t.Run("Seeds new schemas", func(t *testing.T) {
		mockProvider := new(MockSchemaProvider)
		ctx := context.Background()

		// Expect GetSchema -> Not Found
		mockProvider.On("GetSchema", ctx, "claim").Return("", database.ErrSchemaNotFound)
		// Expect CreateSchema
		mockProvider.On("CreateSchema", ctx, "claim", schemaContent).Return(nil)

		err := SeedSchemas(ctx, mockProvider, tmpDir)
		assert.NoError(t, err)
		mockProvider.AssertExpectations(t)
	})

	t.Run("Skips existing schemas", func(t *testing.T) {
		mockProvider := new(MockSchemaProvider)
		ctx := context.Background()

		// Expect GetSchema -> Found
		mockProvider.On("GetSchema", ctx, "claim").Return("existing content", nil)
		// Expect NO CreateSchema call

		err := SeedSchemas(ctx, mockProvider, tmpDir)
		assert.NoError(t, err)
		mockProvider.AssertExpectations(t)
		mockProvider.AssertNotCalled(t, "CreateSchema")
	})

	t.Run("Create failure", func(t *testing.T) {
		mockProvider := new(MockSchemaProvider)
		ctx := context.Background()

		mockProvider.On("GetSchema", ctx, "claim").Return("", database.ErrSchemaNotFound)
		mockProvider.On("CreateSchema", ctx, "claim", schemaContent).Return(errors.New("db down"))

		err := SeedSchemas(ctx, mockProvider, tmpDir)
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("Missing directory", func(t *testing.T) {
		err := SeedSchemas(context.Background(), new(MockSchemaProvider), filepath.Join(tmpDir, "missing"))
		assert.NoError(t, err)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{`), 0o644))

		err := SeedSchemas(context.Background(), new(MockSchemaProvider), dir)
		assert.ErrorContains(t, err, "not valid JSON")
	})
}
