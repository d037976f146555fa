package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"statement-import-backend/internal/filestore"
	handler "statement-import-backend/internal/handlers"
	"statement-import-backend/internal/models"
	"statement-import-backend/internal/routes"
	"statement-import-backend/internal/services/imports"
	"statement-import-backend/internal/testutil"
)

const statement = "Date;Description;Amount\n15/01/2025;CARTE 15/01/25 CAFE DU COIN CB*1234;-42,00\n16/01/2025;PRLV SEPA EDF;-60,50\n"

const statementConfig = `{"hasHeader":true,"delimiter":";","decimalSeparator":",","dateFormat":"DD/MM/YYYY","columns":{"date":0,"description":"B","amount":2}}`

type server struct {
	router  *gin.Engine
	db      *gorm.DB
	account *models.Account
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	r := gin.New()
	r.Use(handler.RequestLogger(zerolog.Nop()))
	routes.RegisterRoutes(r, db, filestore.NewDBStore(db), imports.Options{Logger: zerolog.Nop()})
	return &server{router: r, db: db, account: testutil.CreateAccount(t, db, uuid.New(), "0")}
}

func (s *server) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("X-User-ID", s.account.UserID.String())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) upload(t *testing.T, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req)
}

func (s *server) postJSON(t *testing.T, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

type analysisResponse struct {
	ImportID   uuid.UUID `json:"importId"`
	Candidates []struct {
		StagedRecord struct {
			Row int `json:"sourceRowIndex"`
		} `json:"stagedRecord"`
		Classification  string `json:"classification"`
		MerchantPattern string `json:"merchantPattern"`
	} `json:"candidates"`
	Summary struct {
		Total int `json:"total"`
		New   int `json:"new"`
	} `json:"summary"`
}

func TestImportFlow(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, map[string]string{"accountId": s.account.ID.String(), "config": statementConfig}, "releve.csv", statement)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var analysis analysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.Equal(t, 2, analysis.Summary.Total)
	assert.Equal(t, 2, analysis.Summary.New)
	require.Len(t, analysis.Candidates, 2)
	assert.Equal(t, 2, analysis.Candidates[0].StagedRecord.Row)
	assert.Equal(t, "cafe du coin", analysis.Candidates[0].MerchantPattern)

	payee := uuid.New()
	w = s.postJSON(t, fmt.Sprintf("/api/imports/%s/confirm", analysis.ImportID), map[string]interface{}{
		"decisions": map[string]interface{}{
			"2": map[string]interface{}{"action": "create", "payeeId": payee.String()},
			"3": map[string]interface{}{"action": "skip"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result imports.ConfirmResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ImportCompleted, result.Status)
	assert.Equal(t, 1, result.ImportedCount)

	// A second confirmation is rejected.
	w = s.postJSON(t, fmt.Sprintf("/api/imports/%s/confirm", analysis.ImportID), map[string]interface{}{
		"decisions": map[string]interface{}{"2": map[string]interface{}{"action": "create"}},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/imports/"+analysis.ImportID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var imp models.Import
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &imp))
	assert.Equal(t, models.ImportCompleted, imp.Status)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/imports?accountId="+s.account.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), analysis.ImportID.String())

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/aliases", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"normalizedPattern":"cafe du coin"`)
}

func TestAnalyzeErrors(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  string
		want     int
	}{
		{"bad account", map[string]string{"accountId": "x"}, "a.csv", statement, http.StatusBadRequest},
		{"unknown account", map[string]string{"accountId": uuid.NewString(), "config": statementConfig}, "a.csv", statement, http.StatusNotFound},
		{"unsupported type", map[string]string{"accountId": s.account.ID.String()}, "a.pdf", "%PDF", http.StatusUnprocessableEntity},
		{"missing columns", map[string]string{"accountId": s.account.ID.String()}, "a.csv", statement, http.StatusBadRequest},
		{"bad config json", map[string]string{"accountId": s.account.ID.String(), "config": "{"}, "a.csv", statement, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.upload(t, tt.fields, tt.filename, tt.content)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRequireUser(t *testing.T) {
	s := newServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfirmErrors(t *testing.T) {
	s := newServer(t)

	w := s.postJSON(t, "/api/imports/not-a-uuid/confirm", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.postJSON(t, "/api/imports/"+uuid.NewString()+"/confirm", map[string]interface{}{
		"decisions": map[string]interface{}{"2": map[string]interface{}{"action": "create"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.postJSON(t, "/api/imports/"+uuid.NewString()+"/confirm", map[string]interface{}{
		"decisions": map[string]interface{}{"2": map[string]interface{}{"action": "explode"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAlias(t *testing.T) {
	s := newServer(t)
	payee := uuid.New()

	w := s.postJSON(t, "/api/aliases", map[string]string{"description": "PRLV SEPA NETFLIX.COM", "payeeId": payee.String()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var a models.PayeeAlias
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, payee, a.PayeeID)
	assert.Equal(t, models.AliasManual, a.Source)

	w = s.postJSON(t, "/api/aliases", map[string]string{"description": "CB", "payeeId": payee.String()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.postJSON(t, "/api/aliases", map[string]string{"description": "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
