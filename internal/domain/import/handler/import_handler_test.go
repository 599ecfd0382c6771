package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/budget-importer/internal/domain/import/format"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/mapper"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
	"github.com/FACorreiaa/budget-importer/pkg/storage"
)

const statementCSV = "Date,Description,Amount\n" +
	"15/01/2024,Tesco,-45.00\n" +
	"16/01/2024,Pret A Manger,-6.50\n" +
	"16/01/2024,Pret A Manger,-6.50\n" +
	"nope,Broken,-1.00\n"

type testServer struct {
	mux   *http.ServeMux
	repo  *repository.MemoryImportRepository
	files *storage.LocalStorage
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := repository.NewMemoryImportRepository()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svc := importservice.NewImportService(repo, importservice.DefaultOptions(), logger)
	mux := http.NewServeMux()
	NewImportHandler(svc, files, maxUpload, logger).RegisterRoutes(mux)

	return &testServer{mux: mux, repo: repo, files: files}
}

func (s *testServer) upload(t *testing.T, budgetID string, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if budgetID != "" {
		require.NoError(t, mw.WriteField("budgetId", budgetID))
	}
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(t *testing.T, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestImportHandler_Flow(t *testing.T) {
	s := newTestServer(t, 1<<20)
	budgetID, accountID := uuid.New(), uuid.New()

	rec := s.upload(t, budgetID.String(), "jan.csv", []byte(statementCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	analyzed := decodeBody[AnalyzeResponse](t, rec)
	require.NotEqual(t, uuid.Nil, analyzed.UploadID)
	assert.Equal(t, importservice.MappingAuto, analyzed.Analysis.MappingSource)
	assert.Equal(t, 4, analyzed.Analysis.RowCount)

	rec = s.postJSON(t, "/api/v1/imports/preview", PreviewRequest{BudgetID: budgetID, UploadID: analyzed.UploadID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decodeBody[importservice.PreviewResult](t, rec)
	assert.Len(t, preview.Items, 3)
	assert.Len(t, preview.Errors, 1)
	assert.Equal(t, 1, preview.Summary.InternalDuplicates)
	assert.Equal(t, 2, preview.Summary.Selected)

	rec = s.postJSON(t, "/api/v1/imports/commit", CommitRequest{
		PreviewRequest: PreviewRequest{BudgetID: budgetID, UploadID: analyzed.UploadID, AccountID: &accountID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[importservice.ImportResult](t, rec)
	assert.Equal(t, 2, result.RowsImported)
	assert.Equal(t, 4, result.RowsTotal)
	assert.Len(t, s.repo.Transactions(budgetID), 2)

	rec = s.postJSON(t, "/api/v1/imports/preview", PreviewRequest{BudgetID: budgetID, UploadID: analyzed.UploadID})
	assert.Equal(t, http.StatusNotFound, rec.Code, "committed uploads are removed")
}

func TestImportHandler_Analyze(t *testing.T) {
	budgetID := uuid.New().String()

	tests := []struct {
		name       string
		maxUpload  int64
		budgetID   string
		file       string
		content    []byte
		wantStatus int
		wantError  string
	}{
		{"missing budget", 1 << 20, "", "a.csv", []byte(statementCSV), http.StatusBadRequest, "invalid budgetId"},
		{"missing file", 1 << 20, budgetID, "", nil, http.StatusBadRequest, "file is required"},
		{"binary file", 1 << 20, budgetID, "a.png", []byte{0x89, 'P', 'N', 'G', 0x00}, http.StatusBadRequest, "unsupported file"},
		{"too large", 16, budgetID, "a.csv", []byte(statementCSV), http.StatusRequestEntityTooLarge, "upload too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.maxUpload)
			rec := s.upload(t, tt.budgetID, tt.file, tt.content)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, decodeBody[errorResponse](t, rec).Error, tt.wantError)
		})
	}

	t.Run("rejected uploads are not kept", func(t *testing.T) {
		s := newTestServer(t, 1<<20)
		id := uuid.New()
		rec := s.upload(t, id.String(), "a.png", []byte{0x89, 'P', 'N', 'G', 0x00})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		files, err := s.files.List(t.Context(), id)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestImportHandler_EmptyUpload(t *testing.T) {
	s := newTestServer(t, 1<<20)
	budgetID := uuid.New()

	rec := s.upload(t, budgetID.String(), "blank.csv", []byte("\n \n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	analyzed := decodeBody[AnalyzeResponse](t, rec)
	assert.Zero(t, analyzed.Analysis.RowCount)

	rec = s.postJSON(t, "/api/v1/imports/preview", PreviewRequest{BudgetID: budgetID, UploadID: analyzed.UploadID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decodeBody[importservice.PreviewResult](t, rec)
	assert.Empty(t, preview.Items)
	assert.Zero(t, preview.Summary.Selected)
}

func TestImportHandler_PreviewErrors(t *testing.T) {
	s := newTestServer(t, 1<<20)
	budgetID := uuid.New()

	t.Run("unknown upload", func(t *testing.T) {
		rec := s.postJSON(t, "/api/v1/imports/preview", PreviewRequest{BudgetID: budgetID, UploadID: uuid.New()})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing ids", func(t *testing.T) {
		rec := s.postJSON(t, "/api/v1/imports/preview", PreviewRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/preview", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody[errorResponse](t, rec).Error, "invalid JSON body")
	})

	t.Run("invalid manual mapping", func(t *testing.T) {
		up := decodeBody[AnalyzeResponse](t, s.upload(t, budgetID.String(), "jan.csv", []byte(statementCSV)))
		rec := s.postJSON(t, "/api/v1/imports/preview", PreviewRequest{
			BudgetID: budgetID,
			UploadID: up.UploadID,
			Mappings: []format.ColumnMapping{{SourceHeader: "Description", Field: format.FieldVendor}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed commit items", func(t *testing.T) {
		up := decodeBody[AnalyzeResponse](t, s.upload(t, budgetID.String(), "jan.csv", []byte(statementCSV)))
		accountID := uuid.New()

		tests := []struct {
			name string
			tx   mapper.MappedTransaction
			want string
		}{
			{"unparsed date", mapper.MappedTransaction{Date: "15/01/2024", Vendor: "Tesco", Amount: decimal.NewFromInt(-45)}, "invalid date"},
			{"impossible date", mapper.MappedTransaction{Date: "2024-02-31", Vendor: "Tesco", Amount: decimal.NewFromInt(-45)}, "invalid date"},
			{"blank vendor", mapper.MappedTransaction{Date: "2024-01-15", Vendor: "  ", Amount: decimal.NewFromInt(-45)}, "vendor is required"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := s.postJSON(t, "/api/v1/imports/commit", CommitRequest{
					PreviewRequest: PreviewRequest{BudgetID: budgetID, UploadID: up.UploadID, AccountID: &accountID},
					Items:          []importservice.CommitItem{{Transaction: tt.tx}},
				})
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Contains(t, decodeBody[errorResponse](t, rec).Error, tt.want)
			})
		}
		assert.Empty(t, s.repo.Transactions(budgetID))
	})

	t.Run("commit requires an account", func(t *testing.T) {
		up := decodeBody[AnalyzeResponse](t, s.upload(t, budgetID.String(), "jan.csv", []byte(statementCSV)))
		rec := s.postJSON(t, "/api/v1/imports/commit", CommitRequest{
			PreviewRequest: PreviewRequest{BudgetID: budgetID, UploadID: up.UploadID},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestImportHandler_Mappings(t *testing.T) {
	s := newTestServer(t, 1<<20)
	budgetID := uuid.New()

	rec := s.postJSON(t, "/api/v1/imports/mappings", importservice.SaveMappingRequest{
		BudgetID: budgetID,
		Headers:  []string{"Date", "Description", "Amount"},
		Mappings: []format.ColumnMapping{
			{SourceHeader: "Date", Field: format.FieldDate},
			{SourceHeader: "Description", Field: format.FieldDescription},
			{SourceHeader: "Amount", Field: format.FieldAmount},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decodeBody[repository.BankMapping](t, rec)

	t.Run("get saved mapping", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/mappings/"+saved.Fingerprint+"?budgetId="+budgetID.String(), nil)
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, saved.ID, decodeBody[repository.BankMapping](t, rec).ID)
	})

	t.Run("unknown fingerprint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/mappings/abc?budgetId="+budgetID.String(), nil)
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("saved mapping drives analysis", func(t *testing.T) {
		rec := s.upload(t, budgetID.String(), "jan.csv", []byte(statementCSV))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, importservice.MappingSaved, decodeBody[AnalyzeResponse](t, rec).Analysis.MappingSource)
	})

	t.Run("invalid mapping", func(t *testing.T) {
		rec := s.postJSON(t, "/api/v1/imports/mappings", importservice.SaveMappingRequest{
			BudgetID: budgetID,
			Headers:  []string{"Date"},
			Mappings: []format.ColumnMapping{{SourceHeader: "Date", Field: format.FieldDate}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
