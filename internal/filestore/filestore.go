// Package filestore archives the raw bytes of uploaded statement files so an
// import can be re-parsed when it is confirmed.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"statement-import-backend/internal/models"
)

// ErrNotFound is returned when no file was stored for an import.
var ErrNotFound = errors.New("import file not found")

// Store saves and loads the raw file of an import.
type Store interface {
	Save(ctx context.Context, importID uuid.UUID, data []byte) error
	Load(ctx context.Context, importID uuid.UUID) ([]byte, error)
}

// DBStore keeps files in the import_files table.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Save(ctx context.Context, importID uuid.UUID, data []byte) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "import_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(&models.ImportFile{ImportID: importID, Data: data}).Error
}

func (s *DBStore) Load(ctx context.Context, importID uuid.UUID) ([]byte, error) {
	var f models.ImportFile
	err := s.db.WithContext(ctx).First(&f, "import_id = ?", importID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f.Data, nil
}

// GCSStore keeps files as objects under prefix in a Cloud Storage bucket.
type GCSStore struct {
	bucket *storage.BucketHandle
	prefix string
}

func NewGCSStore(client *storage.Client, bucket, prefix string) *GCSStore {
	return &GCSStore{bucket: client.Bucket(bucket), prefix: prefix}
}

func (s *GCSStore) object(importID uuid.UUID) *storage.ObjectHandle {
	return s.bucket.Object(path.Join(s.prefix, importID.String()))
}

func (s *GCSStore) Save(ctx context.Context, importID uuid.UUID, data []byte) error {
	w := s.object(importID).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing import file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing import file upload: %w", err)
	}
	return nil
}

func (s *GCSStore) Load(ctx context.Context, importID uuid.UUID) ([]byte, error) {
	r, err := s.object(importID).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import file: %w", err)
	}
	return data, nil
}
