package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"statement-import-backend/internal/config"
	"statement-import-backend/internal/filestore"
	handler "statement-import-backend/internal/handlers"
	"statement-import-backend/internal/logger"
	"statement-import-backend/internal/models"
	"statement-import-backend/internal/routes"
	"statement-import-backend/internal/services/imports"
)

func main() {
	// Load .env
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Debug().Msg("no .env file found, relying on system env")
	}

	if err := run(context.Background(), cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	r, cleanup, err := setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	log.Info().Str("port", cfg.Port).Str("file_store", cfg.FileStore).Msg("starting server")
	return r.Run(":" + cfg.Port)
}

// setup connects the database and file store and builds the router. The
// returned cleanup releases both.
func setup(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gin.Engine, func(), error) {
	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}

	profiles, err := config.LoadProfiles(cfg.ParseProfilesPath)
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	files, closeFiles, err := newFileStore(ctx, cfg, db)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("setting up file store: %w", err)
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(log))
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, files, imports.Options{
		Tolerances:     cfg.Tolerances(),
		WindowSize:     cfg.LedgerWindowSize,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Profiles:       profiles,
		Logger:         log,
	})
	log.Debug().Int("profiles", len(profiles)).Msg("routes registered")

	return r, func() {
		closeFiles()
		closeDB()
	}, nil
}

func newFileStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (filestore.Store, func(), error) {
	if cfg.FileStore != "gcs" {
		return filestore.NewDBStore(db), func() {}, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	return filestore.NewGCSStore(client, cfg.GCSBucket, cfg.GCSPrefix), func() { _ = client.Close() }, nil
}
