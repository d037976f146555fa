package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"statement-import-backend/internal/services/matching"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port        string
	DBDriver    string
	DatabaseURL string
	CORSOrigins []string
	LogLevel    string

	FileStore string // "database" or "gcs"
	GCSBucket string
	GCSPrefix string

	DateToleranceDays   int
	AmountTolerance     decimal.Decimal
	SecondaryWindowDays int
	CandidateWindowDays int
	LedgerWindowSize    int
	ConfirmTimeout      time.Duration
	ParseProfilesPath   string
}

// Load reads the configuration from environment variables, applying defaults
// for anything unset.
func Load() (*Config, error) {
	var errs []error
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		FileStore:         strings.ToLower(getEnv("FILE_STORE", "database")),
		GCSBucket:         os.Getenv("GCS_BUCKET"),
		GCSPrefix:         getEnv("GCS_PREFIX", "imports"),
		ParseProfilesPath: os.Getenv("PARSE_PROFILES"),
	}

	cfg.DateToleranceDays = getInt("MATCH_DATE_TOLERANCE_DAYS", 2, &errs)
	cfg.SecondaryWindowDays = getInt("MATCH_SECONDARY_WINDOW_DAYS", 5, &errs)
	cfg.CandidateWindowDays = getInt("MATCH_CANDIDATE_WINDOW_DAYS", cfg.DateToleranceDays, &errs)
	cfg.LedgerWindowSize = getInt("LEDGER_WINDOW_SIZE", 500, &errs)

	cfg.AmountTolerance = decimal.RequireFromString("0.01")
	if v := os.Getenv("MATCH_AMOUNT_TOLERANCE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			errs = append(errs, fmt.Errorf("MATCH_AMOUNT_TOLERANCE: invalid value %q", v))
		} else {
			cfg.AmountTolerance = d
		}
	}
	if v := os.Getenv("CONFIRM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("CONFIRM_TIMEOUT: invalid duration %q", v))
		} else {
			cfg.ConfirmTimeout = d
		}
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver))
	}
	switch cfg.FileStore {
	case "database":
	case "gcs":
		if cfg.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required when FILE_STORE=gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("FILE_STORE must be database or gcs, got %q", cfg.FileStore))
	}
	if cfg.SecondaryWindowDays < cfg.DateToleranceDays {
		errs = append(errs, errors.New("MATCH_SECONDARY_WINDOW_DAYS must not be smaller than MATCH_DATE_TOLERANCE_DAYS"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Tolerances returns the matching tolerances configured for the engine.
func (c *Config) Tolerances() matching.Tolerances {
	return matching.Tolerances{
		DateDays:            c.DateToleranceDays,
		Amount:              c.AmountTolerance,
		SecondaryWindowDays: c.SecondaryWindowDays,
		CandidateWindowDays: c.CandidateWindowDays,
	}
}

// InitDB opens the configured database.
func InitDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "statement-import.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for postgres")
		}
		dialector = postgres.Open(cfg.DatabaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.DBDriver, err)
	}
	return db, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid value %q", key, v))
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
