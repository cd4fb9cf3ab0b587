package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/licensegate/licensegate/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder persists validation decisions and admin mutations.
//
// Recording is best-effort: a failed audit write never fails the request
// that produced it.
type Recorder interface {
	RecordValidation(ctx context.Context, key, decision string, detail map[string]any, at time.Time)
	RecordAdmin(ctx context.Context, key, action string, detail map[string]any, at time.Time)
	List(ctx context.Context, limit int) ([]models.ValidationEvent, error)
}

// GormRecorder implements Recorder on a GORM connection.
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder constructs a GormRecorder.
func NewGormRecorder(db *gorm.DB) *GormRecorder { return &GormRecorder{db: db} }

// RecordValidation persists one validation decision event.
func (r *GormRecorder) RecordValidation(ctx context.Context, key, decision string, detail map[string]any, at time.Time) {
	r.record(ctx, models.EventKindValidation, key, decision, detail, at)
}

// RecordAdmin persists one admin mutation event.
func (r *GormRecorder) RecordAdmin(ctx context.Context, key, action string, detail map[string]any, at time.Time) {
	r.record(ctx, models.EventKindAdmin, key, action, detail, at)
}

func (r *GormRecorder) record(_ context.Context, kind, key, decision string, detail map[string]any, at time.Time) {
	if r == nil || r.db == nil {
		return
	}

	// Detached context: the event outlives a canceled request.
	dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var payload datatypes.JSON
	if len(detail) > 0 {
		raw, errMarshal := json.Marshal(detail)
		if errMarshal != nil {
			log.WithError(errMarshal).Warn("audit: marshal event detail failed")
		} else {
			payload = datatypes.JSON(raw)
		}
	}

	event := models.ValidationEvent{
		Kind:       kind,
		LicenseKey: TruncateKey(key),
		Decision:   decision,
		Detail:     payload,
		OccurredAt: at,
	}
	if errCreate := r.db.WithContext(dbCtx).Create(&event).Error; errCreate != nil {
		log.WithError(errCreate).Error("audit: persist event failed")
	}
}

// List returns the most recent events, newest first.
func (r *GormRecorder) List(ctx context.Context, limit int) ([]models.ValidationEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var rows []models.ValidationEvent
	if errFind := r.db.WithContext(ctx).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("audit: list events: %w", errFind)
	}
	return rows, nil
}

// TruncateKey shortens a license key for logs and audit rows.
func TruncateKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return key
	}
	return key[:4] + "…" + key[len(key)-4:]
}

// DeviceDigest returns a short stable digest of a device identifier so
// raw device IDs never land in logs.
func DeviceDigest(deviceID string) string {
	if deviceID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(deviceID))
	return hex.EncodeToString(sum[:])[:12]
}
