package document

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRootShape = errors.New("patch document root must be an object")
	ErrTypeConflict     = errors.New("type conflict")
	ErrParse            = errors.New("parse error")
	ErrPatch            = errors.New("patch operation failed")
)

// InvalidRootShapeError is returned by Merge when the patch is not an object.
type InvalidRootShapeError struct {
	Kind Kind
}

func (e *InvalidRootShapeError) Error() string {
	return fmt.Sprintf("%s, got %s", ErrInvalidRootShape, e.Kind)
}

func (e *InvalidRootShapeError) Is(target error) bool {
	return target == ErrInvalidRootShape
}

// TypeConflictError is returned by Merge when an array in the patch meets
// an object in the target.
type TypeConflictError struct {
	Path string // JSON Pointer of the conflicting key
	Key  string
	From Kind
	To   Kind
}

func (e *TypeConflictError) Error() string {
	return fmt.Sprintf("%s at %s: cannot replace %s with %s", ErrTypeConflict, e.Path, e.From, e.To)
}

func (e *TypeConflictError) Is(target error) bool {
	return target == ErrTypeConflict
}

// ParseError reports malformed JSON text.
type ParseError struct {
	Offset int64
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at line %d, column %d (offset %d): %v", ErrParse, e.Line, e.Column, e.Offset, e.Err)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(data []byte, offset int64, err error) *ParseError {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, c := range data[:offset] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return &ParseError{Offset: offset, Line: line, Column: col, Err: err}
}

// PatchErrorKind classifies failures of RFC 6902 operations.
type PatchErrorKind int

const (
	PatchFailed PatchErrorKind = iota
	PatchPathNotFound
	PatchTestFailed
	PatchInvalidIndex
	PatchInvalidOperation
)

func (k PatchErrorKind) String() string {
	switch k {
	case PatchPathNotFound:
		return "path not found"
	case PatchTestFailed:
		return "test failed"
	case PatchInvalidIndex:
		return "invalid index"
	case PatchInvalidOperation:
		return "invalid operation"
	default:
		return "failed"
	}
}

// PatchError reports the operation that failed and why.
type PatchError struct {
	Index int
	Op    string
	Path  string
	Kind  PatchErrorKind
	Err   error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("operation %d (%s %s): %s: %v", e.Index, e.Op, e.Path, e.Kind, e.Err)
}

func (e *PatchError) Is(target error) bool {
	return target == ErrPatch
}

func (e *PatchError) Unwrap() error {
	return e.Err
}
