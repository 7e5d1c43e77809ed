package database

import (
	"context"
	"errors"
	"sync"
)

// CachingStore wraps a CaseDataStore and SchemaProvider and caches the
// latest version of each case and every schema it has read.
type CachingStore struct {
	store    CaseDataStore
	provider SchemaProvider
	latest   sync.Map
	schemas  sync.Map
}

// NewCachingStore creates a new CachingStore.
func NewCachingStore(store CaseDataStore, provider SchemaProvider) *CachingStore {
	return &CachingStore{
		store:    store,
		provider: provider,
	}
}

// GetLatest retrieves the latest version of a case, checking the cache first.
func (c *CachingStore) GetLatest(ctx context.Context, caseID string) (*CaseData, error) {
	if val, ok := c.latest.Load(caseID); ok {
		data := *val.(*CaseData)
		return &data, nil
	}

	data, err := c.store.GetLatest(ctx, caseID)
	if err != nil {
		return nil, err
	}

	c.storeLatest(data)
	copied := *data
	return &copied, nil
}

// storeLatest caches data unless a newer version is already cached.
func (c *CachingStore) storeLatest(data *CaseData) {
	copied := *data
	for {
		cur, loaded := c.latest.LoadOrStore(data.CaseID, &copied)
		if !loaded {
			return
		}
		if cur.(*CaseData).Version >= copied.Version {
			return
		}
		if c.latest.CompareAndSwap(data.CaseID, cur, &copied) {
			return
		}
	}
}

// GetVersion passes through; stored versions never change.
func (c *CachingStore) GetVersion(ctx context.Context, caseID string, version int) (*CaseData, error) {
	return c.store.GetVersion(ctx, caseID, version)
}

// ListVersions passes through to the underlying store.
func (c *CachingStore) ListVersions(ctx context.Context, caseID string, offset, limit int) ([]*CaseData, error) {
	return c.store.ListVersions(ctx, caseID, offset, limit)
}

// AppendVersion stores a new version and makes it the cached latest.
func (c *CachingStore) AppendVersion(ctx context.Context, data *CaseData) error {
	if err := c.store.AppendVersion(ctx, data); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// Someone else wrote; the cached latest is stale.
			c.InvalidateCase(data.CaseID)
		}
		return err
	}
	c.storeLatest(data)
	return nil
}

// DeleteCase deletes a case and invalidates the cache. The second
// invalidation drops a latest version cached by a read that raced the delete.
func (c *CachingStore) DeleteCase(ctx context.Context, caseID string) error {
	c.InvalidateCase(caseID)
	err := c.store.DeleteCase(ctx, caseID)
	c.InvalidateCase(caseID)
	return err
}

// InvalidateCase removes a case from the cache.
func (c *CachingStore) InvalidateCase(caseID string) {
	c.latest.Delete(caseID)
}

// GetSchema retrieves a schema by name, checking the cache first.
func (c *CachingStore) GetSchema(ctx context.Context, name string) (string, error) {
	if val, ok := c.schemas.Load(name); ok {
		return val.(string), nil
	}

	schema, err := c.provider.GetSchema(ctx, name)
	if err != nil {
		return "", err
	}

	c.schemas.Store(name, schema)
	return schema, nil
}

// ListSchemas passes through to the underlying provider.
func (c *CachingStore) ListSchemas(ctx context.Context) ([]*Schema, error) {
	return c.provider.ListSchemas(ctx)
}

// InvalidateSchema removes a schema from the cache.
func (c *CachingStore) InvalidateSchema(name string) {
	c.schemas.Delete(name)
}

// CreateSchema creates a new schema and invalidates the cache.
func (c *CachingStore) CreateSchema(ctx context.Context, name, content string) error {
	// Invalidate cache to ensure fresh data on next read
	c.InvalidateSchema(name)
	return c.provider.CreateSchema(ctx, name, content)
}

// DeleteSchema deletes a schema and invalidates the cache.
func (c *CachingStore) DeleteSchema(ctx context.Context, name string) error {
	c.InvalidateSchema(name)
	return c.provider.DeleteSchema(ctx, name)
}
