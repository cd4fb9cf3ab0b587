package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/licensegate/licensegate/internal/audit"
	"github.com/licensegate/licensegate/internal/models"
	"github.com/licensegate/licensegate/internal/store"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Admin operation errors.
var (
	// ErrInvalidKey indicates an empty or malformed key argument.
	ErrInvalidKey = errors.New("license: invalid key")
	// ErrInvalidValidity indicates a negative validity window.
	ErrInvalidValidity = errors.New("license: valid_for_days must be >= 0")
	// ErrInvalidCount indicates a non-positive generation count.
	ErrInvalidCount = errors.New("license: count must be > 0")
	// ErrKeySpaceExhausted indicates key generation could not find enough
	// collision-free candidates.
	ErrKeySpaceExhausted = errors.New("license: unable to generate unique keys")
)

// maxGenerateBatch caps a single generate request.
const maxGenerateBatch = 10000

// AdminService implements administrative license mutations.
type AdminService struct {
	store store.KeyStore
	clock Clock
	audit audit.Recorder
}

// NewAdminService constructs an AdminService. The recorder may be nil.
func NewAdminService(keyStore store.KeyStore, clock Clock, recorder audit.Recorder) *AdminService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AdminService{store: keyStore, clock: clock, audit: recorder}
}

// CreateKey inserts a new unbound, non-revoked license.
// Returns store.ErrDuplicateKey when the key already exists.
func (s *AdminService) CreateKey(ctx context.Context, key string, validForDays int, notes json.RawMessage) (*models.License, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}
	if validForDays < 0 {
		return nil, ErrInvalidValidity
	}

	record := &models.License{
		Key:          key,
		Revoked:      false,
		ValidForDays: validForDays,
	}
	if len(notes) > 0 {
		record.Notes = datatypes.JSON(notes)
	}
	if errInsert := s.store.Insert(ctx, record); errInsert != nil {
		return nil, errInsert
	}

	s.recordAdmin(ctx, key, "create", map[string]any{"valid_for_days": validForDays})
	return record, nil
}

// RevokeKey marks a key revoked. Revoking an already-revoked key succeeds.
func (s *AdminService) RevokeKey(ctx context.Context, key string) error {
	return s.setRevoked(ctx, key, true, "revoke")
}

// ReinstateKey clears the revocation flag, leaving binding and validity
// untouched. Reinstating a non-revoked key succeeds.
func (s *AdminService) ReinstateKey(ctx context.Context, key string) error {
	return s.setRevoked(ctx, key, false, "reinstate")
}

func (s *AdminService) setRevoked(ctx context.Context, key string, revoked bool, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidKey
	}
	if errSet := s.store.SetRevoked(ctx, key, revoked); errSet != nil {
		return errSet
	}
	s.recordAdmin(ctx, key, action, nil)
	return nil
}

// ModifyValidity replaces the validity window of a key.
//
// Expiration is derived, so this retroactively moves the expiry of
// already-bound keys.
func (s *AdminService) ModifyValidity(ctx context.Context, key string, validForDays int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidKey
	}
	if validForDays < 0 {
		return ErrInvalidValidity
	}
	if errUpdate := s.store.UpdateValidity(ctx, key, validForDays); errUpdate != nil {
		return errUpdate
	}
	s.recordAdmin(ctx, key, "modify_validity", map[string]any{"valid_for_days": validForDays})
	return nil
}

// BulkCreate inserts all keys not already present. Duplicates within the
// input or against storage are skipped silently.
func (s *AdminService) BulkCreate(ctx context.Context, keys []string, validForDays int) (created int64, skipped int, err error) {
	if validForDays < 0 {
		return 0, 0, ErrInvalidValidity
	}

	seen := make(map[string]struct{}, len(keys))
	records := make([]*models.License, 0, len(keys))
	for _, raw := range keys {
		key := strings.TrimSpace(raw)
		if key == "" {
			skipped++
			continue
		}
		if _, dup := seen[key]; dup {
			skipped++
			continue
		}
		seen[key] = struct{}{}
		records = append(records, &models.License{Key: key, ValidForDays: validForDays})
	}
	if len(records) == 0 {
		return 0, skipped, nil
	}

	created, err = s.store.InsertBatch(ctx, records)
	if err != nil {
		return 0, skipped, err
	}
	skipped += len(records) - int(created)

	s.recordAdmin(ctx, "", "bulk_create", map[string]any{
		"created": created,
		"skipped": skipped,
	})
	return created, skipped, nil
}

// GenerateKeys creates count fresh random keys, collision-checked against
// storage and against each other, and inserts them.
func (s *AdminService) GenerateKeys(ctx context.Context, count, validForDays int, format KeyFormat) ([]string, error) {
	if count <= 0 || count > maxGenerateBatch {
		return nil, ErrInvalidCount
	}
	if validForDays < 0 {
		return nil, ErrInvalidValidity
	}

	accepted := make([]string, 0, count)
	acceptedSet := make(map[string]struct{}, count)

	// Collisions against a 32^16 key space are vanishingly rare; the
	// attempt cap only guards against a broken random source.
	maxAttempts := count * 10
	for attempt := 0; len(accepted) < count && attempt < maxAttempts; attempt++ {
		remaining := count - len(accepted)
		batch := make([]string, 0, remaining)
		for i := 0; i < remaining; i++ {
			key, errGen := GenerateKey(format)
			if errGen != nil {
				return nil, errGen
			}
			if _, dup := acceptedSet[key]; dup {
				continue
			}
			batch = append(batch, key)
		}
		if len(batch) == 0 {
			continue
		}

		existing, errExisting := s.store.ExistingKeys(ctx, batch)
		if errExisting != nil {
			return nil, errExisting
		}
		for _, key := range batch {
			if _, taken := existing[key]; taken {
				continue
			}
			if _, dup := acceptedSet[key]; dup {
				continue
			}
			acceptedSet[key] = struct{}{}
			accepted = append(accepted, key)
		}
	}
	if len(accepted) < count {
		return nil, ErrKeySpaceExhausted
	}

	records := make([]*models.License, 0, len(accepted))
	for _, key := range accepted {
		records = append(records, &models.License{Key: key, ValidForDays: validForDays})
	}
	inserted, errInsert := s.store.InsertBatch(ctx, records)
	if errInsert != nil {
		return nil, errInsert
	}
	if inserted != int64(len(accepted)) {
		// A concurrent writer claimed one of the candidates between the
		// collision check and the insert. Extremely unlikely; surface it
		// rather than silently returning keys that were not created.
		return nil, fmt.Errorf("license: generated %d keys but inserted %d", len(accepted), inserted)
	}

	log.WithFields(log.Fields{"count": count, "valid_for_days": validForDays}).Info("generated license keys")
	s.recordAdmin(ctx, "", "generate", map[string]any{
		"count":          count,
		"valid_for_days": validForDays,
	})
	return accepted, nil
}

// GetKey loads a single license by key.
func (s *AdminService) GetKey(ctx context.Context, key string) (*models.License, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}
	return s.store.GetByKey(ctx, key)
}

// ListKeys returns licenses ordered by creation time descending.
func (s *AdminService) ListKeys(ctx context.Context, opts store.ListOptions) ([]models.License, int64, error) {
	return s.store.List(ctx, opts)
}

func (s *AdminService) recordAdmin(ctx context.Context, key, action string, detail map[string]any) {
	log.WithFields(log.Fields{"key": audit.TruncateKey(key), "action": action}).Info("admin mutation")
	if s.audit != nil {
		s.audit.RecordAdmin(ctx, key, action, detail, s.clock.Now())
	}
}
