package cases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"casedata/internal/database"
	"casedata/internal/document"
	"casedata/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCaseDataStore is a mock for CaseDataStore interface
type MockCaseDataStore struct {
	mock.Mock
}

func (m *MockCaseDataStore) GetLatest(ctx context.Context, caseID string) (*database.CaseData, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.CaseData), args.Error(1)
}

func (m *MockCaseDataStore) GetVersion(ctx context.Context, caseID string, version int) (*database.CaseData, error) {
	args := m.Called(ctx, caseID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.CaseData), args.Error(1)
}

func (m *MockCaseDataStore) ListVersions(ctx context.Context, caseID string, offset, limit int) ([]*database.CaseData, error) {
	args := m.Called(ctx, caseID, offset, limit)
	return args.Get(0).([]*database.CaseData), args.Error(1)
}

func (m *MockCaseDataStore) AppendVersion(ctx context.Context, data *database.CaseData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *MockCaseDataStore) DeleteCase(ctx context.Context, caseID string) error {
	args := m.Called(ctx, caseID)
	return args.Error(0)
}

// MockSchemaProvider is a mock for SchemaProvider interface
type MockSchemaProvider struct {
	mock.Mock
}

func (m *MockSchemaProvider) GetSchema(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockSchemaProvider) ListSchemas(ctx context.Context) ([]*database.Schema, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*database.Schema), args.Error(1)
}

func (m *MockSchemaProvider) CreateSchema(ctx context.Context, name, content string) error {
	args := m.Called(ctx, name, content)
	return args.Error(0)
}

func (m *MockSchemaProvider) DeleteSchema(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// MockValidator is a mock for SchemaValidator interface
type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) Validate(schema string, data []byte) error {
	args := m.Called(schema, string(data))
	return args.Error(0)
}

func (m *MockValidator) CheckSchema(schema string) error {
	args := m.Called(schema)
	return args.Error(0)
}

var testOptions = Options{MaxRetries: 3, RetryInterval: time.Millisecond}

func mustParse(t *testing.T, s string) *document.Node {
	t.Helper()
	n, err := document.ParseString(s)
	require.NoError(t, err)
	return n
}

func caseData(version int, data string) *database.CaseData {
	return &database.CaseData{CaseID: "case-1", Version: version, Data: data}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Stores version one", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)

		mockStore.On("AppendVersion", ctx, mock.MatchedBy(func(cd *database.CaseData) bool {
			return cd.CaseID == "case-1" && cd.Version == 1 && cd.Data == `{"b":1,"a":2}`
		})).Return(nil).Once()

		snap, err := service.Create(ctx, "case-1", "", mustParse(t, `{"b": 1, "a": 2}`))

		require.NoError(t, err)
		assert.Equal(t, 1, snap.Version)
		mockStore.AssertExpectations(t)
	})

	t.Run("Validates against schema", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		mockSchemas := new(MockSchemaProvider)
		mockValidator := new(MockValidator)
		service := NewService(mockStore, mockSchemas, mockValidator, testOptions)

		mockSchemas.On("GetSchema", ctx, "claim").Return(`{"type":"object"}`, nil).Once()
		mockValidator.On("Validate", `{"type":"object"}`, `{"a":1}`).Return(&validation.ValidationError{Violations: []string{"bad"}}).Once()

		_, err := service.Create(ctx, "case-1", "claim", mustParse(t, `{"a": 1}`))

		assert.ErrorIs(t, err, validation.ErrInvalidDocument)
		mockStore.AssertNotCalled(t, "AppendVersion", mock.Anything, mock.Anything)
		mockValidator.AssertExpectations(t)
	})

	t.Run("Rejects non-object", func(t *testing.T) {
		service := NewService(new(MockCaseDataStore), new(MockSchemaProvider), new(MockValidator), testOptions)

		_, err := service.Create(ctx, "case-1", "", mustParse(t, `[1]`))

		assert.ErrorIs(t, err, ErrNotAnObject)
	})

	t.Run("Existing case", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)
		mockStore.On("AppendVersion", ctx, mock.Anything).Return(database.ErrVersionConflict).Once()

		_, err := service.Create(ctx, "case-1", "", mustParse(t, `{}`))

		assert.ErrorIs(t, err, ErrCaseExists)
	})
}

func TestService_Merge(t *testing.T) {
	ctx := context.Background()

	t.Run("Appends merged version", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)

		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(2, `{"a":1,"tags":["x"]}`), nil).Once()
		mockStore.On("AppendVersion", ctx, mock.MatchedBy(func(cd *database.CaseData) bool {
			return cd.Version == 3 && cd.Data == `{"a":1,"tags":["x","y"],"b":true}`
		})).Return(nil).Once()

		snap, err := service.Merge(ctx, "case-1", mustParse(t, `{"tags":["y"],"b":true}`), 0)

		require.NoError(t, err)
		assert.Equal(t, 3, snap.Version)
		assert.Equal(t, `{"a":1,"tags":["x","y"],"b":true}`, document.SerializeString(snap.Data))
		mockStore.AssertExpectations(t)
	})

	t.Run("Retries on version conflict", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)

		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(1, `{"n":[1]}`), nil).Once()
		mockStore.On("AppendVersion", ctx, mock.MatchedBy(func(cd *database.CaseData) bool {
			return cd.Version == 2
		})).Return(database.ErrVersionConflict).Once()
		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(2, `{"n":[1,2]}`), nil).Once()
		mockStore.On("AppendVersion", ctx, mock.MatchedBy(func(cd *database.CaseData) bool {
			return cd.Version == 3 && cd.Data == `{"n":[1,2,3]}`
		})).Return(nil).Once()

		snap, err := service.Merge(ctx, "case-1", mustParse(t, `{"n":[3]}`), 0)

		require.NoError(t, err)
		assert.Equal(t, 3, snap.Version)
		mockStore.AssertExpectations(t)
	})

	t.Run("Gives up after max retries", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), Options{MaxRetries: 1, RetryInterval: time.Millisecond})

		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(1, `{}`), nil).Times(2)
		mockStore.On("AppendVersion", ctx, mock.Anything).Return(database.ErrVersionConflict).Times(2)

		_, err := service.Merge(ctx, "case-1", mustParse(t, `{"a":1}`), 0)

		assert.ErrorIs(t, err, database.ErrVersionConflict)
		mockStore.AssertExpectations(t)
	})

	t.Run("Expected version mismatch", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)
		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(4, `{}`), nil).Once()

		_, err := service.Merge(ctx, "case-1", mustParse(t, `{"a":1}`), 3)

		assert.ErrorIs(t, err, ErrStaleVersion)
		mockStore.AssertNotCalled(t, "AppendVersion", mock.Anything, mock.Anything)
	})

	t.Run("Expected version conflict is not retried", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)
		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(3, `{}`), nil).Once()
		mockStore.On("AppendVersion", ctx, mock.Anything).Return(database.ErrVersionConflict).Once()

		_, err := service.Merge(ctx, "case-1", mustParse(t, `{"a":1}`), 3)

		assert.ErrorIs(t, err, ErrStaleVersion)
		mockStore.AssertExpectations(t)
	})

	t.Run("Type conflict", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)
		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(1, `{"a":{"b":1}}`), nil).Once()

		_, err := service.Merge(ctx, "case-1", mustParse(t, `{"a":[1]}`), 0)

		assert.ErrorIs(t, err, document.ErrTypeConflict)
		mockStore.AssertNotCalled(t, "AppendVersion", mock.Anything, mock.Anything)
	})

	t.Run("Case not found", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)
		mockStore.On("GetLatest", ctx, "missing").Return(nil, database.ErrNotFound).Once()

		_, err := service.Merge(ctx, "missing", mustParse(t, `{}`), 0)

		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("Validates merged document", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		mockSchemas := new(MockSchemaProvider)
		mockValidator := new(MockValidator)
		service := NewService(mockStore, mockSchemas, mockValidator, testOptions)

		cd := caseData(1, `{"a":1}`)
		cd.SchemaName = "claim"
		mockStore.On("GetLatest", ctx, "case-1").Return(cd, nil).Once()
		mockSchemas.On("GetSchema", ctx, "claim").Return(`{}`, nil).Once()
		mockValidator.On("Validate", `{}`, `{"a":1,"b":2}`).Return(nil).Once()
		mockStore.On("AppendVersion", ctx, mock.MatchedBy(func(cd *database.CaseData) bool {
			return cd.SchemaName == "claim"
		})).Return(nil).Once()

		_, err := service.Merge(ctx, "case-1", mustParse(t, `{"b":2}`), 0)

		require.NoError(t, err)
		mockStore.AssertExpectations(t)
		mockValidator.AssertExpectations(t)
	})
}

func TestService_Patch(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies operations", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)

		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(1, `{"a":1,"b":2}`), nil).Once()
		mockStore.On("AppendVersion", ctx, mock.MatchedBy(func(cd *database.CaseData) bool {
			return cd.Version == 2 && cd.Data == `{"a":5}`
		})).Return(nil).Once()

		ops := []document.Operation{
			{Op: "replace", Path: "/a", Value: document.Int(5)},
			{Op: "remove", Path: "/b"},
		}
		snap, err := service.Patch(ctx, "case-1", ops, 1)

		require.NoError(t, err)
		assert.Equal(t, 2, snap.Version)
		mockStore.AssertExpectations(t)
	})

	t.Run("Failed test operation", func(t *testing.T) {
		mockStore := new(MockCaseDataStore)
		service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)
		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(1, `{"a":1}`), nil).Once()

		ops := []document.Operation{{Op: "test", Path: "/a", Value: document.Int(2)}}
		_, err := service.Patch(ctx, "case-1", ops, 0)

		var perr *document.PatchError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, document.PatchTestFailed, perr.Kind)
		mockStore.AssertNotCalled(t, "AppendVersion", mock.Anything, mock.Anything)
	})
}

func TestService_ReadOperations(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockCaseDataStore)
	service := NewService(mockStore, new(MockSchemaProvider), new(MockValidator), testOptions)

	t.Run("Get", func(t *testing.T) {
		mockStore.On("GetLatest", ctx, "case-1").Return(caseData(2, `{"a":1.50}`), nil).Once()

		snap, err := service.Get(ctx, "case-1")

		require.NoError(t, err)
		assert.Equal(t, `{"a":1.50}`, document.SerializeString(snap.Data))
	})

	t.Run("Corrupt data", func(t *testing.T) {
		mockStore.On("GetVersion", ctx, "case-1", 7).Return(caseData(7, `{"a":`), nil).Once()

		_, err := service.GetVersion(ctx, "case-1", 7)

		assert.ErrorIs(t, err, ErrCorruptCaseData)
	})

	t.Run("History", func(t *testing.T) {
		mockStore.On("ListVersions", ctx, "case-1", 0, 10).Return([]*database.CaseData{
			caseData(1, `{}`),
			caseData(2, `{"a":1}`),
		}, nil).Once()

		history, err := service.History(ctx, "case-1", 0, 10)

		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 2, history[1].Version)
	})

	t.Run("Diff", func(t *testing.T) {
		mockStore.On("GetVersion", ctx, "case-1", 1).Return(caseData(1, `{"a":1}`), nil).Once()
		mockStore.On("GetVersion", ctx, "case-1", 2).Return(caseData(2, `{"a":2.0}`), nil).Once()

		ops, err := service.Diff(ctx, "case-1", 1, 2)

		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, "replace", ops[0].Op)
		assert.Equal(t, "/a", ops[0].Path)
	})

	t.Run("Delete", func(t *testing.T) {
		mockStore.On("DeleteCase", ctx, "case-1").Return(nil).Once()

		assert.NoError(t, service.Delete(ctx, "case-1"))
	})

	mockStore.AssertExpectations(t)
}

func TestService_ConcurrentMerges(t *testing.T) {
	ctx := context.Background()
	store, err := database.NewFileStore(t.TempDir())
	require.NoError(t, err)

	// Two services over one store behave like two processes: the keyed
	// lock serializes within each, the store's version check across them.
	opts := Options{MaxRetries: 50, RetryInterval: time.Millisecond}
	services := []*Service{
		NewService(store, store, validation.NewJSONSchemaValidator(), opts),
		NewService(store, store, validation.NewJSONSchemaValidator(), opts),
	}

	_, err = services[0].Create(ctx, "case-1", "", mustParse(t, `{"events":[]}`))
	require.NoError(t, err)

	const perService = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*perService)
	for i, svc := range services {
		for j := 0; j < perService; j++ {
			wg.Add(1)
			go func(svc *Service, n int) {
				defer wg.Done()
				patch := mustParseNoT(fmt.Sprintf(`{"events":[%d]}`, n))
				if _, err := svc.Merge(ctx, "case-1", patch, 0); err != nil {
					errs <- err
				}
			}(svc, i*perService+j)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := services[0].Get(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, 1+2*perService, snap.Version)
	events, _ := snap.Data.Get("events")
	assert.Equal(t, 2*perService, events.Len())
}

func mustParseNoT(s string) *document.Node {
	n, err := document.ParseString(s)
	if err != nil {
		panic(err)
	}
	return n
}
