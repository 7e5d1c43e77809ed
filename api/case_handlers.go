package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"casedata/internal/cases"
	"casedata/internal/database"
	"casedata/internal/document"
	"casedata/internal/validation"

	"github.com/danielgtaylor/huma/v2"
)

// CaseHandlers handles case data API requests.
type CaseHandlers struct {
	service *cases.Service
}

// NewCaseHandlers registers case data handlers with the API.
func NewCaseHandlers(api huma.API, svc *cases.Service) {
	h := &CaseHandlers{service: svc}

	huma.Register(api, huma.Operation{
		OperationID:   "create-case-data",
		Method:        http.MethodPost,
		Path:          "/api/v1/cases/{caseId}/data",
		Summary:       "Create case data",
		Description:   "Stores the first version of a case's data document.",
		Tags:          []string{"Case Data"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateCaseData)

	huma.Register(api, huma.Operation{
		OperationID: "get-case-data",
		Method:      http.MethodGet,
		Path:        "/api/v1/cases/{caseId}/data",
		Summary:     "Get case data",
		Description: "Retrieves the latest version of a case's data.",
		Tags:        []string{"Case Data"},
	}, h.GetCaseData)

	huma.Register(api, huma.Operation{
		OperationID: "list-case-data-versions",
		Method:      http.MethodGet,
		Path:        "/api/v1/cases/{caseId}/data/versions",
		Summary:     "List case data versions",
		Description: "Lists the versions of a case's data, oldest first.",
		Tags:        []string{"Case Data"},
	}, h.ListVersions)

	huma.Register(api, huma.Operation{
		OperationID: "get-case-data-version",
		Method:      http.MethodGet,
		Path:        "/api/v1/cases/{caseId}/data/versions/{version}",
		Summary:     "Get a case data version",
		Tags:        []string{"Case Data"},
	}, h.GetVersion)

	huma.Register(api, huma.Operation{
		OperationID: "merge-case-data",
		Method:      http.MethodPost,
		Path:        "/api/v1/cases/{caseId}/data/merge",
		Summary:     "Merge into case data",
		Description: "Deep-merges the request body into the latest version. Null values remove keys, arrays are appended.",
		Tags:        []string{"Case Data"},
	}, h.MergeCaseData)

	huma.Register(api, huma.Operation{
		OperationID: "patch-case-data",
		Method:      http.MethodPost,
		Path:        "/api/v1/cases/{caseId}/data/patch",
		Summary:     "Patch case data",
		Description: "Applies a list of JSON Patch (RFC 6902) operations to the latest version.",
		Tags:        []string{"Case Data"},
	}, h.PatchCaseData)

	huma.Register(api, huma.Operation{
		OperationID: "diff-case-data",
		Method:      http.MethodGet,
		Path:        "/api/v1/cases/{caseId}/data/diff",
		Summary:     "Diff case data versions",
		Description: "Returns the JSON Patch operations that turn one version into another.",
		Tags:        []string{"Case Data"},
	}, h.DiffCaseData)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-case-data",
		Method:        http.MethodDelete,
		Path:          "/api/v1/cases/{caseId}/data",
		Summary:       "Delete case data",
		Description:   "Deletes every version of a case's data.",
		Tags:          []string{"Case Data"},
		DefaultStatus: http.StatusNoContent,
	}, h.DeleteCaseData)
}

// Inputs/Outputs

type CaseDataBody struct {
	CaseID     string          `json:"caseId"`
	Version    int             `json:"version"`
	SchemaName string          `json:"schemaName,omitempty"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type CaseDataOutput struct {
	Body CaseDataBody
}

type CaseInput struct {
	CaseID string `path:"caseId" doc:"The ID of the case"`
}

type CreateCaseDataInput struct {
	CaseID string `path:"caseId" doc:"The ID of the case"`
	Body   struct {
		SchemaName string          `json:"schemaName,omitempty" doc:"Optional schema every version must satisfy"`
		Data       json.RawMessage `json:"data" doc:"The initial data document, a JSON object"`
	}
}

type ListVersionsInput struct {
	CaseID string `path:"caseId" doc:"The ID of the case"`
	Offset int    `query:"offset" doc:"The offset for pagination" default:"0" minimum:"0"`
	Limit  int    `query:"limit" doc:"The limit for pagination" default:"10" minimum:"0"`
}

type ListVersionsOutput struct {
	Body []CaseDataBody
}

type GetVersionInput struct {
	CaseID  string `path:"caseId" doc:"The ID of the case"`
	Version int    `path:"version" doc:"The version to retrieve" minimum:"1"`
}

type MergeCaseDataInput struct {
	CaseID          string `path:"caseId" doc:"The ID of the case"`
	ExpectedVersion int    `query:"expectedVersion" doc:"Fail with 409 unless this is the latest version" minimum:"0"`
	RawBody         []byte `contentType:"application/json"`
}

type PatchCaseDataInput struct {
	CaseID          string `path:"caseId" doc:"The ID of the case"`
	ExpectedVersion int    `query:"expectedVersion" doc:"Fail with 409 unless this is the latest version" minimum:"0"`
	RawBody         []byte `contentType:"application/json-patch+json"`
}

type DiffCaseDataInput struct {
	CaseID string `path:"caseId" doc:"The ID of the case"`
	From   int    `query:"from" doc:"The source version" minimum:"1" required:"true"`
	To     int    `query:"to" doc:"The target version" minimum:"1" required:"true"`
}

type OperationBody struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	From  *string         `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

type DiffCaseDataOutput struct {
	Body []OperationBody
}

func toBody(s *cases.Snapshot) CaseDataBody {
	return CaseDataBody{
		CaseID:     s.CaseID,
		Version:    s.Version,
		SchemaName: s.SchemaName,
		Data:       json.RawMessage(document.Serialize(s.Data)),
		CreatedAt:  s.CreatedAt,
	}
}

// httpError maps domain errors onto API status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, document.ErrParse),
		errors.Is(err, document.ErrInvalidRootShape),
		errors.Is(err, cases.ErrNotAnObject),
		errors.Is(err, validation.ErrInvalidDocument):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, database.ErrSchemaNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, database.ErrVersionConflict),
		errors.Is(err, cases.ErrStaleVersion),
		errors.Is(err, cases.ErrCaseExists):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, document.ErrTypeConflict),
		errors.Is(err, document.ErrPatch):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}

// Handlers

// CreateCaseData stores the first version of a case's data.
func (h *CaseHandlers) CreateCaseData(ctx context.Context, input *CreateCaseDataInput) (*CaseDataOutput, error) {
	data, err := document.Parse(input.Body.Data)
	if err != nil {
		return nil, httpError(err)
	}

	snap, err := h.service.Create(ctx, input.CaseID, input.Body.SchemaName, data)
	if err != nil {
		slog.Warn("CreateCaseData: Failed to create case data", "case_id", input.CaseID, "error", err)
		return nil, httpError(err)
	}
	return &CaseDataOutput{Body: toBody(snap)}, nil
}

// GetCaseData retrieves the latest version of a case's data.
func (h *CaseHandlers) GetCaseData(ctx context.Context, input *CaseInput) (*CaseDataOutput, error) {
	snap, err := h.service.Get(ctx, input.CaseID)
	if err != nil {
		return nil, httpError(err)
	}
	return &CaseDataOutput{Body: toBody(snap)}, nil
}

// ListVersions lists a case's versions with pagination.
func (h *CaseHandlers) ListVersions(ctx context.Context, input *ListVersionsInput) (*ListVersionsOutput, error) {
	history, err := h.service.History(ctx, input.CaseID, input.Offset, input.Limit)
	if err != nil {
		slog.Error("ListVersions: Failed to list versions", "case_id", input.CaseID, "error", err)
		return nil, httpError(err)
	}

	resp := &ListVersionsOutput{Body: make([]CaseDataBody, 0, len(history))}
	for _, snap := range history {
		resp.Body = append(resp.Body, toBody(snap))
	}
	return resp, nil
}

// GetVersion retrieves one version of a case's data.
func (h *CaseHandlers) GetVersion(ctx context.Context, input *GetVersionInput) (*CaseDataOutput, error) {
	snap, err := h.service.GetVersion(ctx, input.CaseID, input.Version)
	if err != nil {
		return nil, httpError(err)
	}
	return &CaseDataOutput{Body: toBody(snap)}, nil
}

// MergeCaseData merges the request body into the latest version.
func (h *CaseHandlers) MergeCaseData(ctx context.Context, input *MergeCaseDataInput) (*CaseDataOutput, error) {
	patch, err := document.Parse(input.RawBody)
	if err != nil {
		return nil, httpError(err)
	}

	snap, err := h.service.Merge(ctx, input.CaseID, patch, input.ExpectedVersion)
	if err != nil {
		slog.Warn("MergeCaseData: Merge failed", "case_id", input.CaseID, "error", err)
		return nil, httpError(err)
	}
	return &CaseDataOutput{Body: toBody(snap)}, nil
}

// PatchCaseData applies JSON Patch operations to the latest version.
func (h *CaseHandlers) PatchCaseData(ctx context.Context, input *PatchCaseDataInput) (*CaseDataOutput, error) {
	ops, err := document.DecodeOperations(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid patch document: " + err.Error())
	}

	snap, err := h.service.Patch(ctx, input.CaseID, ops, input.ExpectedVersion)
	if err != nil {
		slog.Warn("PatchCaseData: Patch failed", "case_id", input.CaseID, "error", err)
		return nil, httpError(err)
	}
	return &CaseDataOutput{Body: toBody(snap)}, nil
}

// DiffCaseData returns the operations between two versions.
func (h *CaseHandlers) DiffCaseData(ctx context.Context, input *DiffCaseDataInput) (*DiffCaseDataOutput, error) {
	ops, err := h.service.Diff(ctx, input.CaseID, input.From, input.To)
	if err != nil {
		return nil, httpError(err)
	}

	resp := &DiffCaseDataOutput{Body: make([]OperationBody, 0, len(ops))}
	for _, op := range ops {
		body := OperationBody{Op: op.Op, Path: op.Path}
		if op.HasFrom() {
			from := op.From
			body.From = &from
		}
		if op.Value != nil {
			body.Value = json.RawMessage(document.Serialize(op.Value))
		}
		resp.Body = append(resp.Body, body)
	}
	return resp, nil
}

// DeleteCaseData deletes every version of a case.
func (h *CaseHandlers) DeleteCaseData(ctx context.Context, input *CaseInput) (*struct{}, error) {
	if err := h.service.Delete(ctx, input.CaseID); err != nil {
		slog.Error("DeleteCaseData: Failed to delete case data", "case_id", input.CaseID, "error", err)
		return nil, httpError(err)
	}
	return nil, nil
}
