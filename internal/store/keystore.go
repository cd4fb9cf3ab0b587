package store

import (
	"context"
	"errors"
	"time"

	"github.com/licensegate/licensegate/internal/models"
)

// Storage errors surfaced to callers.
var (
	// ErrNotFound indicates the license key does not exist.
	ErrNotFound = errors.New("store: license not found")
	// ErrDuplicateKey indicates an insert collided with an existing key.
	ErrDuplicateKey = errors.New("store: license key already exists")
	// ErrAlreadyBound indicates a conditional bind lost to a concurrent writer.
	ErrAlreadyBound = errors.New("store: license already bound")
)

// ListOptions controls pagination and filtering for List.
type ListOptions struct {
	Page   int    // 1-based page number.
	Limit  int    // Page size, capped by the implementation.
	Search string // Optional substring match on the key.
	Status string // Optional status filter: unused, active, revoked.
}

// KeyStore is the durable mapping from license key to license record.
//
// Bind is the single serialization point for the first-use binding
// transition and must be atomic at the storage layer: concurrent Bind
// calls for the same key must never both succeed.
type KeyStore interface {
	// GetByKey loads a license by its key, returning ErrNotFound when absent.
	GetByKey(ctx context.Context, key string) (*models.License, error)
	// Insert creates a new license, returning ErrDuplicateKey on collision.
	Insert(ctx context.Context, license *models.License) error
	// InsertBatch creates all licenses whose keys are not already present
	// and reports how many rows were inserted. Duplicates are skipped, not
	// treated as errors.
	InsertBatch(ctx context.Context, licenses []*models.License) (int64, error)
	// Bind atomically assigns the key to a device if and only if it is
	// still unbound. Returns ErrAlreadyBound when another writer won the
	// race and ErrNotFound when the key does not exist.
	Bind(ctx context.Context, key, deviceID string, issuedAt time.Time) error
	// SetRevoked flips the revocation flag. Idempotent.
	SetRevoked(ctx context.Context, key string, revoked bool) error
	// UpdateValidity replaces the validity window length.
	UpdateValidity(ctx context.Context, key string, validForDays int) error
	// ExistingKeys reports which of the given keys are already stored.
	ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
	// List returns licenses ordered by creation time descending.
	List(ctx context.Context, opts ListOptions) ([]models.License, int64, error)
}
