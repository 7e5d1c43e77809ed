package cases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"casedata/internal/database"
	"casedata/internal/document"
	"casedata/internal/validation"

	"github.com/sethvargo/go-retry"
)

var (
	ErrCaseExists      = errors.New("case data already exists")
	ErrStaleVersion    = errors.New("case data has changed since the expected version")
	ErrNotAnObject     = errors.New("case data must be a JSON object")
	ErrCorruptCaseData = errors.New("stored case data is not valid JSON")
)

// Options tunes how the Service retries concurrent updates.
type Options struct {
	MaxRetries    uint64
	RetryInterval time.Duration
}

const defaultRetryInterval = 50 * time.Millisecond

// Service provides read-modify-write operations over versioned case data.
type Service struct {
	store     database.CaseDataStore
	schemas   database.SchemaProvider
	validator validation.SchemaValidator
	locks     *caseLocks
	opts      Options
}

// NewService creates a new Service with the given dependencies.
func NewService(store database.CaseDataStore, schemas database.SchemaProvider, v validation.SchemaValidator, opts Options) *Service {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	return &Service{
		store:     store,
		schemas:   schemas,
		validator: v,
		locks:     newCaseLocks(),
		opts:      opts,
	}
}

// Snapshot is a parsed version of a case's data.
type Snapshot struct {
	CaseID     string
	Version    int
	SchemaName string
	Data       *document.Node
	CreatedAt  time.Time
}

func snapshotOf(cd *database.CaseData) (*Snapshot, error) {
	doc, err := document.ParseString(cd.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: case %s version %d: %v", ErrCorruptCaseData, cd.CaseID, cd.Version, err)
	}
	return &Snapshot{
		CaseID:     cd.CaseID,
		Version:    cd.Version,
		SchemaName: cd.SchemaName,
		Data:       doc,
		CreatedAt:  cd.CreatedAt,
	}, nil
}

// Create stores the first version of a case's data.
func (s *Service) Create(ctx context.Context, caseID, schemaName string, data *document.Node) (*Snapshot, error) {
	if data.Kind != document.ObjectKind {
		return nil, ErrNotAnObject
	}

	unlock := s.locks.lock(caseID)
	defer unlock()

	text := document.Serialize(data)
	if err := s.validate(ctx, schemaName, text); err != nil {
		return nil, err
	}

	cd := &database.CaseData{
		CaseID:     caseID,
		Version:    1,
		SchemaName: schemaName,
		Data:       string(text),
	}
	if err := s.store.AppendVersion(ctx, cd); err != nil {
		if errors.Is(err, database.ErrVersionConflict) {
			return nil, ErrCaseExists
		}
		return nil, err
	}

	slog.Info("CreateCaseData: Created case data", "case_id", caseID, "schema", schemaName)
	return &Snapshot{CaseID: caseID, Version: 1, SchemaName: schemaName, Data: data, CreatedAt: cd.CreatedAt}, nil
}

// Get returns the latest version of a case's data.
func (s *Service) Get(ctx context.Context, caseID string) (*Snapshot, error) {
	cd, err := s.store.GetLatest(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(cd)
}

// GetVersion returns a specific version of a case's data.
func (s *Service) GetVersion(ctx context.Context, caseID string, version int) (*Snapshot, error) {
	cd, err := s.store.GetVersion(ctx, caseID, version)
	if err != nil {
		return nil, err
	}
	return snapshotOf(cd)
}

// History returns a page of a case's versions, oldest first.
func (s *Service) History(ctx context.Context, caseID string, offset, limit int) ([]*Snapshot, error) {
	versions, err := s.store.ListVersions(ctx, caseID, offset, limit)
	if err != nil {
		return nil, err
	}
	result := make([]*Snapshot, 0, len(versions))
	for _, cd := range versions {
		snap, err := snapshotOf(cd)
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	return result, nil
}

// Merge deep-merges patch into the latest version and stores the result
// as a new version. A non-zero expectedVersion fails with ErrStaleVersion
// when the case has moved on.
func (s *Service) Merge(ctx context.Context, caseID string, patch *document.Node, expectedVersion int) (*Snapshot, error) {
	return s.update(ctx, "MergeCaseData", caseID, expectedVersion, func(doc *document.Node) (*document.Node, error) {
		return document.Merge(doc, patch)
	})
}

// Patch applies RFC 6902 operations to the latest version and stores the
// result as a new version.
func (s *Service) Patch(ctx context.Context, caseID string, ops []document.Operation, expectedVersion int) (*Snapshot, error) {
	return s.update(ctx, "PatchCaseData", caseID, expectedVersion, func(doc *document.Node) (*document.Node, error) {
		return document.Patch(doc, ops)
	})
}

// update runs a read-modify-write cycle. Updates to one case are
// serialized in process; a version conflict from the store means another
// process won the race, and the cycle is retried unless the caller pinned
// the version.
func (s *Service) update(ctx context.Context, opName, caseID string, expectedVersion int, fn func(*document.Node) (*document.Node, error)) (*Snapshot, error) {
	unlock := s.locks.lock(caseID)
	defer unlock()

	backoff := retry.WithMaxRetries(s.opts.MaxRetries, retry.NewConstant(s.opts.RetryInterval))

	var result *Snapshot
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		current, err := s.store.GetLatest(ctx, caseID)
		if err != nil {
			return err
		}
		if expectedVersion > 0 && current.Version != expectedVersion {
			return fmt.Errorf("%w: expected %d, current is %d", ErrStaleVersion, expectedVersion, current.Version)
		}

		snap, err := snapshotOf(current)
		if err != nil {
			return err
		}
		updated, err := fn(snap.Data)
		if err != nil {
			return err
		}

		text := document.Serialize(updated)
		if err := s.validate(ctx, current.SchemaName, text); err != nil {
			return err
		}

		next := &database.CaseData{
			CaseID:     caseID,
			Version:    current.Version + 1,
			SchemaName: current.SchemaName,
			Data:       string(text),
		}
		if err := s.store.AppendVersion(ctx, next); err != nil {
			if errors.Is(err, database.ErrVersionConflict) {
				if expectedVersion > 0 {
					return fmt.Errorf("%w: version %d was written concurrently", ErrStaleVersion, next.Version)
				}
				slog.Warn(opName+": Version conflict, retrying", "case_id", caseID, "version", next.Version)
				return retry.RetryableError(err)
			}
			return err
		}

		result = &Snapshot{
			CaseID:     caseID,
			Version:    next.Version,
			SchemaName: next.SchemaName,
			Data:       updated,
			CreatedAt:  next.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info(opName+": Stored new version", "case_id", caseID, "version", result.Version)
	return result, nil
}

// Diff returns the RFC 6902 operations that turn version from into version to.
func (s *Service) Diff(ctx context.Context, caseID string, from, to int) ([]document.Operation, error) {
	fromSnap, err := s.GetVersion(ctx, caseID, from)
	if err != nil {
		return nil, err
	}
	toSnap, err := s.GetVersion(ctx, caseID, to)
	if err != nil {
		return nil, err
	}
	return document.Diff(fromSnap.Data, toSnap.Data)
}

// Delete removes every version of a case.
func (s *Service) Delete(ctx context.Context, caseID string) error {
	unlock := s.locks.lock(caseID)
	defer unlock()

	if err := s.store.DeleteCase(ctx, caseID); err != nil {
		return err
	}
	slog.Info("DeleteCaseData: Deleted case data", "case_id", caseID)
	return nil
}

func (s *Service) validate(ctx context.Context, schemaName string, data []byte) error {
	if schemaName == "" {
		return nil
	}
	schema, err := s.schemas.GetSchema(ctx, schemaName)
	if err != nil {
		return err
	}
	return s.validator.Validate(schema, data)
}
