package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statement-import-backend/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:        "0",
		DBDriver:    "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "server.db"),
		CORSOrigins: []string{"http://localhost:3000"},
		FileStore:   "database",
	}
}

func TestSetupServesHealth(t *testing.T) {
	r, cleanup, err := setup(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSetupErrorsAreReturned(t *testing.T) {
	cfg := testConfig(t)
	cfg.ParseProfilesPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, _, err := setup(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading parse profiles")

	cfg = testConfig(t)
	cfg.DBDriver = "postgres"
	cfg.DatabaseURL = ""
	err = run(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to database")
}
