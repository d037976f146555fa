package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"statement-import-backend/internal/parser"
)

type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportAnalyzing  ImportStatus = "analyzing"
	ImportAnalyzed   ImportStatus = "analyzed"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// RowError identifies a single failed row. RowID 0 is used for file-level errors.
type RowError struct {
	RowID int    `json:"rowId"`
	Error string `json:"error"`
}

type Import struct {
	ID             uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID                         `gorm:"type:uuid;index" json:"userId"`
	AccountID      uuid.UUID                         `gorm:"type:uuid;index" json:"accountId"`
	Filename       string                            `json:"filename"`
	FileType       parser.Format                     `json:"fileType"`
	Status         ImportStatus                      `gorm:"index" json:"status"`
	TotalRows      int                               `json:"totalRows"`
	SkippedRows    int                               `json:"skippedRows"`
	ImportedCount  int                               `json:"importedCount"`
	DuplicateCount int                               `json:"duplicateCount"`
	MatchedCount   int                               `json:"matchedCount"`
	ErrorCount     int                               `json:"errorCount"`
	ErrorDetails   datatypes.JSONSlice[RowError]     `json:"errorDetails"`
	Config         datatypes.JSONType[parser.Config] `json:"config"`
	CreatedAt      time.Time                         `json:"createdAt"`
	UpdatedAt      time.Time                         `json:"updatedAt"`
	CompletedAt    *time.Time                        `json:"completedAt,omitempty"`
}

// ImportFile holds the raw uploaded bytes when the database file store is used.
type ImportFile struct {
	ImportID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Data      []byte
	CreatedAt time.Time
}
