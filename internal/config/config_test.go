package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statement-import-backend/internal/parser"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "DB_DRIVER", "DATABASE_URL", "CORS_ORIGINS", "LOG_LEVEL", "FILE_STORE",
		"GCS_BUCKET", "GCS_PREFIX", "MATCH_DATE_TOLERANCE_DAYS", "MATCH_AMOUNT_TOLERANCE",
		"MATCH_SECONDARY_WINDOW_DAYS", "MATCH_CANDIDATE_WINDOW_DAYS", "LEDGER_WINDOW_SIZE",
		"CONFIRM_TIMEOUT", "PARSE_PROFILES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "database", cfg.FileStore)
	assert.Equal(t, 2, cfg.DateToleranceDays)
	assert.Equal(t, 5, cfg.SecondaryWindowDays)
	assert.Equal(t, 2, cfg.CandidateWindowDays)
	assert.Equal(t, 500, cfg.LedgerWindowSize)
	assert.Equal(t, "0.01", cfg.AmountTolerance.String())
	assert.Equal(t, time.Duration(0), cfg.ConfirmTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("MATCH_DATE_TOLERANCE_DAYS", "3")
	t.Setenv("MATCH_CANDIDATE_WINDOW_DAYS", "5")
	t.Setenv("MATCH_AMOUNT_TOLERANCE", "0.02")
	t.Setenv("CONFIRM_TIMEOUT", "30s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DateToleranceDays)
	assert.Equal(t, 5, cfg.CandidateWindowDays)
	assert.Equal(t, "0.02", cfg.AmountTolerance.String())
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)

	tol := cfg.Tolerances()
	assert.Equal(t, 3, tol.DateDays)
	assert.Equal(t, 5, tol.CandidateWindowDays)
	assert.Equal(t, 5, tol.SecondaryWindowDays)
	assert.Equal(t, 5, tol.LookbackDays())
	assert.True(t, tol.Amount.Equal(cfg.AmountTolerance))
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("FILE_STORE", "gcs")
	t.Setenv("LEDGER_WINDOW_SIZE", "lots")
	t.Setenv("CONFIRM_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
	assert.Contains(t, err.Error(), "GCS_BUCKET")
	assert.Contains(t, err.Error(), "LEDGER_WINDOW_SIZE")
	assert.Contains(t, err.Error(), "CONFIRM_TIMEOUT")
}

func TestInitDB_SQLite(t *testing.T) {
	cfg := &Config{DBDriver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "test.db")}
	db, err := InitDB(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Exec("SELECT 1").Error)

	_, err = InitDB(&Config{DBDriver: "postgres"})
	assert.Error(t, err)
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	data := `
societe-generale:
  format: csv
  has_header: true
  skip_rows: 2
  delimiter: ";"
  decimal_separator: ","
  date_format: DD/MM/YYYY
  columns:
    date: "A"
    description: "B"
    amount: "C"
quicken:
  format: qif
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	sg, ok := profiles.Lookup("societe-generale")
	require.True(t, ok)
	assert.Equal(t, string(parser.FormatCSV), sg.Format)
	assert.True(t, sg.HasHeader)
	assert.Equal(t, 2, sg.SkipRows)
	assert.Equal(t, ";", sg.Delimiter)
	assert.Equal(t, parser.Column("C"), sg.Columns.Amount)

	_, ok = profiles.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadProfiles_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broken:\n  format: csv\n"), 0o644))

	_, err := LoadProfiles(path)
	assert.ErrorContains(t, err, `profile "broken"`)

	profiles, err := LoadProfiles("")
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
