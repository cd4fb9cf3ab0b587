package license

import (
	"time"

	"github.com/licensegate/licensegate/internal/models"
)

// Decision is the outcome of evaluating a license against a device and time.
type Decision int

// Policy decisions, in evaluation order.
const (
	// DecisionNotFound means no record exists for the key.
	DecisionNotFound Decision = iota
	// DecisionRevoked means the key was administratively revoked.
	DecisionRevoked
	// DecisionExpired means the bound key's validity window has elapsed.
	DecisionExpired
	// DecisionDeviceMismatch means the key is bound to a different device.
	DecisionDeviceMismatch
	// DecisionGrantBind means the key is unbound and the caller must bind it.
	DecisionGrantBind
	// DecisionGrantExisting means the key is already bound to this device.
	DecisionGrantExisting
)

// String returns the decision name used in logs and audit rows.
func (d Decision) String() string {
	switch d {
	case DecisionNotFound:
		return "not_found"
	case DecisionRevoked:
		return "revoked"
	case DecisionExpired:
		return "expired"
	case DecisionDeviceMismatch:
		return "device_mismatch"
	case DecisionGrantBind:
		return "grant_bind"
	case DecisionGrantExisting:
		return "grant_existing"
	default:
		return "unknown"
	}
}

// Granted reports whether the decision allows access.
func (d Decision) Granted() bool {
	return d == DecisionGrantBind || d == DecisionGrantExisting
}

// Evaluate applies the license policy to a record, device, and time.
//
// The check order is fixed: not-found, revoked, expired, device mismatch,
// grant. Revocation is absolute and reported before any other condition.
// Expiration is derived from the issuance time and only applies to bound
// keys; the validity clock starts at first use. The boundary is inclusive:
// a key issued at T with N valid days is still granted at exactly T+N days
// and denied strictly after.
func Evaluate(record *models.License, deviceID string, now time.Time) Decision {
	if record == nil {
		return DecisionNotFound
	}
	if record.Revoked {
		return DecisionRevoked
	}
	if record.IssuedAt != nil {
		expiresAt := record.IssuedAt.AddDate(0, 0, record.ValidForDays)
		if now.After(expiresAt) {
			return DecisionExpired
		}
	}
	if record.BoundDeviceID != nil {
		if *record.BoundDeviceID != deviceID {
			return DecisionDeviceMismatch
		}
		return DecisionGrantExisting
	}
	return DecisionGrantBind
}
