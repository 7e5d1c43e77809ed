package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FileStore implements CaseDataStore and SchemaProvider using the local filesystem.
// Each case is a directory holding one <version>.json file per version.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

func NewFileStore(basePath string) (*FileStore, error) {
	// Ensure base directories exist
	if err := os.MkdirAll(filepath.Join(basePath, "cases"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cases directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(basePath, "schemas"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create schemas directory: %w", err)
	}

	return &FileStore{
		basePath: basePath,
	}, nil
}

func (s *FileStore) Close(ctx context.Context) error {
	return nil
}

// validName rejects names that would escape the store directory.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}

func (s *FileStore) caseDir(caseID string) string {
	return filepath.Join(s.basePath, "cases", caseID)
}

// --- CaseDataStore Implementation ---

func (s *FileStore) AppendVersion(ctx context.Context, data *CaseData) error {
	if err := validName(data.CaseID); err != nil {
		return err
	}
	if data.Version < 1 {
		return fmt.Errorf("invalid version %d", data.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.caseDir(data.CaseID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if data.ID == "" {
		data.ID = fmt.Sprintf("%s/%d", data.CaseID, data.Version)
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	// A missing base means the writer read a case that has since been
	// deleted or recreated.
	if data.Version > 1 {
		base := filepath.Join(dir, strconv.Itoa(data.Version-1)+".json")
		if _, err := os.Stat(base); err != nil {
			if os.IsNotExist(err) {
				return ErrVersionConflict
			}
			return err
		}
	}

	// O_EXCL makes a second writer of the same version fail.
	path := filepath.Join(dir, strconv.Itoa(data.Version)+".json")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrVersionConflict
		}
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (s *FileStore) GetVersion(ctx context.Context, caseID string, version int) (*CaseData, error) {
	if err := validName(caseID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readVersion(caseID, version)
}

func (s *FileStore) GetLatest(ctx context.Context, caseID string) (*CaseData, error) {
	if err := validName(caseID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, err := s.versions(caseID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	return s.readVersion(caseID, versions[len(versions)-1])
}

func (s *FileStore) ListVersions(ctx context.Context, caseID string, offset, limit int) ([]*CaseData, error) {
	if err := validName(caseID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, err := s.versions(caseID)
	if err != nil {
		return nil, err
	}

	// Apply pagination
	total := len(versions)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*CaseData{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	result := make([]*CaseData, 0, end-offset)
	for _, v := range versions[offset:end] {
		data, err := s.readVersion(caseID, v)
		if err != nil {
			return nil, err
		}
		result = append(result, data)
	}
	return result, nil
}

func (s *FileStore) DeleteCase(ctx context.Context, caseID string) error {
	if err := validName(caseID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.caseDir(caseID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrNotFound
	}
	return os.RemoveAll(dir)
}

// versions returns the stored version numbers of a case in ascending order.
func (s *FileStore) versions(caseID string) ([]int, error) {
	entries, err := os.ReadDir(s.caseDir(caseID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // Skip foreign files
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

func (s *FileStore) readVersion(caseID string, version int) (*CaseData, error) {
	path := filepath.Join(s.caseDir(caseID), strconv.Itoa(version)+".json")
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var data CaseData
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("corrupt case data file %s: %w", path, err)
	}
	return &data, nil
}

// --- SchemaProvider Implementation ---

// Schemas are stored verbatim as schemas/<name>.json.

func (s *FileStore) GetSchema(ctx context.Context, name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	content, err := os.ReadFile(filepath.Join(s.basePath, "schemas", name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSchemaNotFound
		}
		return "", err
	}
	return string(content), nil
}

func (s *FileStore) ListSchemas(ctx context.Context) ([]*Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.basePath, "schemas")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	schemas := []*Schema{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue // Skip unreadable files
		}
		schemas = append(schemas, &Schema{
			Name:   strings.TrimSuffix(entry.Name(), ".json"),
			Schema: json.RawMessage(content),
		})
	}
	return schemas, nil
}

func (s *FileStore) CreateSchema(ctx context.Context, name, content string) error {
	if err := validName(name); err != nil {
		return err
	}
	if !json.Valid([]byte(content)) {
		return errors.New("schema is not valid JSON")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return os.WriteFile(filepath.Join(s.basePath, "schemas", name+".json"), []byte(content), 0644)
}

func (s *FileStore) DeleteSchema(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.basePath, "schemas", name+".json")); err != nil {
		if os.IsNotExist(err) {
			return nil // Already gone
		}
		return err
	}
	return nil
}
