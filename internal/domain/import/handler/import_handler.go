package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/budget-importer/internal/domain/import/format"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/normalizer"
	importservice "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
	"github.com/FACorreiaa/budget-importer/pkg/storage"
)

const (
	multipartMemory   = 8 << 20
	multipartOverhead = 64 << 10
	maxJSONBody       = 4 << 20
)

var errBadRequest = errors.New("bad request")

// ImportHandler serves the import API over JSON.
type ImportHandler struct {
	importSvc      *importservice.ImportService
	files          storage.Storage
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc *importservice.ImportService, files storage.Storage, maxUploadBytes int64, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc:      importSvc,
		files:          files,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes mounts the import endpoints on mux.
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/imports/analyze", h.Analyze)
	mux.HandleFunc("POST /api/v1/imports/preview", h.Preview)
	mux.HandleFunc("POST /api/v1/imports/commit", h.Commit)
	mux.HandleFunc("POST /api/v1/imports/mappings", h.SaveMapping)
	mux.HandleFunc("GET /api/v1/imports/mappings/{fingerprint}", h.GetMapping)
}

// AnalyzeResponse pairs the stored upload with its analysis.
type AnalyzeResponse struct {
	UploadID uuid.UUID                    `json:"uploadId"`
	Analysis *importservice.AnalyzeResult `json:"analysis"`
}

// PreviewRequest reviews a stored upload.
type PreviewRequest struct {
	BudgetID            uuid.UUID              `json:"budgetId"`
	UploadID            uuid.UUID              `json:"uploadId"`
	AccountID           *uuid.UUID             `json:"accountId,omitempty"`
	Mappings            []format.ColumnMapping `json:"mappings,omitempty"`
	DateTolerance       int                    `json:"dateTolerance,omitempty"`
	ConfidenceThreshold float64                `json:"confidenceThreshold,omitempty"`
}

// CommitRequest imports a stored upload. When Items is empty the upload is
// previewed again and the default selection is committed.
type CommitRequest struct {
	PreviewRequest
	IncludeDuplicates bool                       `json:"includeDuplicates,omitempty"`
	AcceptSuggestions bool                       `json:"acceptSuggestions,omitempty"`
	Items             []importservice.CommitItem `json:"items,omitempty"`
	RowsSkipped       int                        `json:"rowsSkipped,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Analyze stores a multipart upload ("file" plus "budgetId") and reports
// its layout and resolved column mapping.
func (h *ImportHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid multipart form: %w", errBadRequest, err))
		return
	}

	budgetID, err := uuid.Parse(r.FormValue("budgetId"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid budgetId", errBadRequest))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: file is required", errBadRequest))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		h.writeError(w, r, &http.MaxBytesError{Limit: h.maxUploadBytes})
		return
	}

	info, err := h.files.Upload(r.Context(), budgetID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("failed to store upload: %w", err))
		return
	}

	data, _, err := h.files.ReadAll(r.Context(), budgetID, info.ID)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	analysis, err := h.importSvc.Analyze(r.Context(), budgetID, info.Name, data)
	if err != nil {
		if delErr := h.files.Delete(r.Context(), budgetID, info.ID); delErr != nil {
			h.logger.Warn("failed to delete rejected upload", slog.Any("error", delErr))
		}
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{UploadID: info.ID, Analysis: analysis})
}

// Preview maps a stored upload and flags duplicates.
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.preview(r, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Commit writes transactions from a stored upload into an account.
func (h *ImportHandler) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.AccountID == nil || *req.AccountID == uuid.Nil {
		h.writeError(w, r, fmt.Errorf("%w: accountId is required", errBadRequest))
		return
	}

	info, err := h.uploadInfo(r, req.BudgetID, req.UploadID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := validateItems(req.Items); err != nil {
		h.writeError(w, r, err)
		return
	}

	items, skipped := req.Items, req.RowsSkipped
	if len(items) == 0 {
		preview, err := h.preview(r, req.PreviewRequest)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items, skipped = preview.Selected(importservice.SelectOptions{
			IncludeDuplicates: req.IncludeDuplicates,
			AcceptSuggestions: req.AcceptSuggestions,
		})
	}

	result, err := h.importSvc.Commit(r.Context(), importservice.CommitRequest{
		BudgetID:    req.BudgetID,
		AccountID:   *req.AccountID,
		FileName:    info.Name,
		Items:       items,
		RowsSkipped: skipped,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.files.Delete(r.Context(), req.BudgetID, req.UploadID); err != nil {
		h.logger.Warn("failed to delete committed upload",
			slog.String("upload_id", req.UploadID.String()),
			slog.Any("error", err),
		)
	}

	writeJSON(w, http.StatusOK, result)
}

// SaveMapping stores a confirmed column mapping.
func (h *ImportHandler) SaveMapping(w http.ResponseWriter, r *http.Request) {
	var req importservice.SaveMappingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.BudgetID == uuid.Nil {
		h.writeError(w, r, fmt.Errorf("%w: budgetId is required", errBadRequest))
		return
	}

	mapping, err := h.importSvc.SaveMapping(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapping)
}

// GetMapping returns the saved mapping for a header fingerprint. The budget
// comes from the budgetId query parameter.
func (h *ImportHandler) GetMapping(w http.ResponseWriter, r *http.Request) {
	budgetID, err := uuid.Parse(r.URL.Query().Get("budgetId"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid budgetId", errBadRequest))
		return
	}

	mapping, err := h.importSvc.GetMapping(r.Context(), budgetID, r.PathValue("fingerprint"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapping)
}

func (h *ImportHandler) preview(r *http.Request, req PreviewRequest) (*importservice.PreviewResult, error) {
	data, info, err := h.readUpload(r, req.BudgetID, req.UploadID)
	if err != nil {
		return nil, err
	}

	return h.importSvc.Preview(r.Context(), importservice.PreviewRequest{
		BudgetID:            req.BudgetID,
		AccountID:           req.AccountID,
		FileName:            info.Name,
		Data:                data,
		Mappings:            req.Mappings,
		DateTolerance:       req.DateTolerance,
		ConfidenceThreshold: req.ConfidenceThreshold,
	})
}

func (h *ImportHandler) uploadInfo(r *http.Request, budgetID, uploadID uuid.UUID) (*storage.FileInfo, error) {
	if budgetID == uuid.Nil || uploadID == uuid.Nil {
		return nil, fmt.Errorf("%w: budgetId and uploadId are required", errBadRequest)
	}
	return h.files.GetInfo(r.Context(), budgetID, uploadID)
}

func (h *ImportHandler) readUpload(r *http.Request, budgetID, uploadID uuid.UUID) ([]byte, *storage.FileInfo, error) {
	if _, err := h.uploadInfo(r, budgetID, uploadID); err != nil {
		return nil, nil, err
	}
	return h.files.ReadAll(r.Context(), budgetID, uploadID)
}

// validateItems checks caller-supplied commit items the way the row mapper
// would have produced them.
func validateItems(items []importservice.CommitItem) error {
	for i, item := range items {
		tx := item.Transaction
		if _, err := normalizer.ParseDate(tx.Date); err != nil {
			return fmt.Errorf("%w: item %d: invalid date %q", errBadRequest, i, tx.Date)
		}
		if strings.TrimSpace(tx.Vendor) == "" {
			return fmt.Errorf("%w: item %d: vendor is required", errBadRequest, i)
		}
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, importservice.ErrMappingNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, importservice.ErrUnsupportedFile),
		errors.Is(err, importservice.ErrInvalidMapping),
		errors.Is(err, importservice.ErrNothingToCommit):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *ImportHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("import request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		msg = http.StatusText(status)
	case http.StatusRequestEntityTooLarge:
		msg = "upload too large"
	default:
		msg = strings.TrimPrefix(msg, errBadRequest.Error()+": ")
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
