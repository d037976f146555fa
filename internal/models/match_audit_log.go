package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MatchAuditLog records every ledger mutation made while confirming an import.
type MatchAuditLog struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ImportID      uuid.UUID `gorm:"type:uuid;index"`
	TransactionID uuid.UUID `gorm:"type:uuid;index"`
	RowID         int
	Action        string
	PerformedBy   uuid.UUID `gorm:"type:uuid"`
	Details       datatypes.JSON
	CreatedAt     time.Time
}
