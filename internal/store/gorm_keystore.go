package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/licensegate/licensegate/internal/db"
	"github.com/licensegate/licensegate/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormKeyStore implements KeyStore on a GORM connection.
type GormKeyStore struct {
	db *gorm.DB
}

// NewGormKeyStore constructs a GormKeyStore.
func NewGormKeyStore(db *gorm.DB) *GormKeyStore {
	return &GormKeyStore{db: db}
}

// GetByKey loads a license by its key.
func (s *GormKeyStore) GetByKey(ctx context.Context, key string) (*models.License, error) {
	var license models.License
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&license).Error
	switch {
	case err == nil:
		return &license, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("store: get license: %w", err)
	}
}

// Insert creates a new license row.
func (s *GormKeyStore) Insert(ctx context.Context, license *models.License) error {
	err := s.db.WithContext(ctx).Create(license).Error
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return fmt.Errorf("store: insert license: %w", err)
}

// InsertBatch creates all licenses not already present, skipping duplicates.
func (s *GormKeyStore) InsertBatch(ctx context.Context, licenses []*models.License) (int64, error) {
	if len(licenses) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		CreateInBatches(licenses, 200)
	if result.Error != nil {
		return 0, fmt.Errorf("store: insert batch: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Bind performs the atomic first-use binding transition.
//
// The update is guarded by the unbound state in the WHERE clause, so two
// concurrent binds for the same key resolve to exactly one winner at the
// database; the loser observes zero affected rows.
func (s *GormKeyStore) Bind(ctx context.Context, key, deviceID string, issuedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.License{}).
		Where("key = ? AND bound_device_id IS NULL", key).
		Updates(map[string]any{
			"bound_device_id": deviceID,
			"issued_at":       issuedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("store: bind license: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.License{}).
		Where("key = ?", key).
		Count(&count).Error; errCount != nil {
		return fmt.Errorf("store: bind license: %w", errCount)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrAlreadyBound
}

// SetRevoked flips the revocation flag for a key.
func (s *GormKeyStore) SetRevoked(ctx context.Context, key string, revoked bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.License{}).
		Where("key = ?", key).
		Update("revoked", revoked)
	if result.Error != nil {
		return fmt.Errorf("store: set revoked: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.translateMissing(ctx, key, "set revoked")
	}
	return nil
}

// UpdateValidity replaces the validity window length for a key.
func (s *GormKeyStore) UpdateValidity(ctx context.Context, key string, validForDays int) error {
	result := s.db.WithContext(ctx).
		Model(&models.License{}).
		Where("key = ?", key).
		Update("valid_for_days", validForDays)
	if result.Error != nil {
		return fmt.Errorf("store: update validity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.translateMissing(ctx, key, "update validity")
	}
	return nil
}

// ExistingKeys reports which of the given keys are already stored.
func (s *GormKeyStore) ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}
	var rows []string
	if errFind := s.db.WithContext(ctx).
		Model(&models.License{}).
		Where("key IN ?", keys).
		Pluck("key", &rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: existing keys: %w", errFind)
	}
	for _, key := range rows {
		existing[key] = struct{}{}
	}
	return existing, nil
}

// List returns licenses ordered by creation time descending.
func (s *GormKeyStore) List(ctx context.Context, opts ListOptions) ([]models.License, int64, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 || opts.Limit > 200 {
		opts.Limit = 50
	}

	query := s.db.WithContext(ctx).Model(&models.License{})

	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := dbutil.NormalizeLikePattern(s.db, "%"+search+"%")
		query = query.Where(dbutil.CaseInsensitiveLikeExpr(s.db, "key"), pattern)
	}

	switch opts.Status {
	case "unused":
		query = query.Where("bound_device_id IS NULL AND revoked = ?", false)
	case "active":
		query = query.Where("bound_device_id IS NOT NULL AND revoked = ?", false)
	case "revoked":
		query = query.Where("revoked = ?", true)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("store: count licenses: %w", errCount)
	}

	var rows []models.License
	offset := (opts.Page - 1) * opts.Limit
	if errFind := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(opts.Limit).
		Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("store: list licenses: %w", errFind)
	}
	return rows, total, nil
}

// translateMissing distinguishes a missing key from a no-op update.
func (s *GormKeyStore) translateMissing(ctx context.Context, key, op string) error {
	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.License{}).
		Where("key = ?", key).
		Count(&count).Error; errCount != nil {
		return fmt.Errorf("store: %s: %w", op, errCount)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether an insert failed on the key unique index.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
