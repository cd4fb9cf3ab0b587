package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event kinds recorded in the audit trail.
const (
	// EventKindValidation marks an event emitted by the validation endpoint.
	EventKindValidation = "validation"
	// EventKindAdmin marks an event emitted by an admin mutation.
	EventKindAdmin = "admin"
)

// ValidationEvent records a single validation decision or admin mutation.
type ValidationEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Kind       string `gorm:"type:text;not null;index"` // Event kind: validation or admin.
	LicenseKey string `gorm:"type:text;index"`          // Truncated license key identifier.
	Decision   string `gorm:"type:text;not null;index"` // Decision or admin action name.

	Detail datatypes.JSON `gorm:"type:jsonb"` // Structured event detail JSON.

	OccurredAt time.Time `gorm:"not null;index"`          // Decision timestamp.
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"` // Row creation timestamp.
}
