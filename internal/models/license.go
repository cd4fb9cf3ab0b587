package models

import (
	"time"

	"gorm.io/datatypes"
)

// License represents a single license key and its binding state.
type License struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Key string `gorm:"type:text;not null;uniqueIndex"` // License key string, immutable.

	Revoked      bool `gorm:"not null;default:false"` // Administrative revocation flag.
	ValidForDays int  `gorm:"not null;default:0"`     // Validity window length in days.

	BoundDeviceID *string    `gorm:"type:text;index"` // Device that claimed the key; nil means unbound.
	IssuedAt      *time.Time // First-use binding time; nil means unbound.

	Notes datatypes.JSON `gorm:"type:jsonb"` // Optional operator metadata.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}

// Bound reports whether the license has been claimed by a device.
//
// BoundDeviceID and IssuedAt are set together in a single conditional
// update; checking either one is equivalent.
func (l *License) Bound() bool {
	return l.BoundDeviceID != nil
}

// ExpiresAt returns the derived expiration time, or nil for unbound keys.
func (l *License) ExpiresAt() *time.Time {
	if l.IssuedAt == nil {
		return nil
	}
	exp := l.IssuedAt.AddDate(0, 0, l.ValidForDays)
	return &exp
}

// Status returns a display status derived from binding, revocation, and expiry.
func (l *License) Status(now time.Time) string {
	if l.Revoked {
		return "revoked"
	}
	if exp := l.ExpiresAt(); exp != nil && now.After(*exp) {
		return "expired"
	}
	if l.Bound() {
		return "active"
	}
	return "unused"
}
