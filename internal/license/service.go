package license

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/licensegate/licensegate/internal/audit"
	"github.com/licensegate/licensegate/internal/models"
	"github.com/licensegate/licensegate/internal/store"

	log "github.com/sirupsen/logrus"
)

// ErrBadRequest indicates a validation request with a missing key or device ID.
var ErrBadRequest = errors.New("license: key and device id are required")

// Result is the outcome of a validation request.
type Result struct {
	Decision Decision        // Final policy decision.
	License  *models.License // Record after the decision; nil when not found.
}

// Granted reports whether the result allows access.
func (r *Result) Granted() bool { return r.Decision.Granted() }

// Service orchestrates license validation: store read, policy evaluation,
// and the conditional first-use binding write.
type Service struct {
	store store.KeyStore
	clock Clock
	audit audit.Recorder
}

// NewService constructs a validation Service. The recorder may be nil.
func NewService(keyStore store.KeyStore, clock Clock, recorder audit.Recorder) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{store: keyStore, clock: clock, audit: recorder}
}

// Validate decides whether the given device may use the given key, binding
// the key on first use.
//
// When the policy yields a first-use grant, the binding is written as an
// atomic compare-and-assign keyed on the unbound state. Losing that race
// triggers exactly one re-read and re-evaluation; the loser then sees the
// bound record and resolves to a terminal decision. The retry never loops.
func (s *Service) Validate(ctx context.Context, key, deviceID string) (*Result, error) {
	key = strings.TrimSpace(key)
	deviceID = strings.TrimSpace(deviceID)
	if key == "" || deviceID == "" {
		return nil, ErrBadRequest
	}

	result, err := s.validateOnce(ctx, key, deviceID, true)
	if err != nil {
		return nil, err
	}

	s.observe(ctx, key, deviceID, result)
	return result, nil
}

// validateOnce runs one read-evaluate-bind pass. allowRetry bounds the
// post-race re-evaluation to a single attempt.
func (s *Service) validateOnce(ctx context.Context, key, deviceID string, allowRetry bool) (*Result, error) {
	record, err := s.store.GetByKey(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("license: read record: %w", err)
	}

	now := s.clock.Now()
	decision := Evaluate(record, deviceID, now)
	if decision != DecisionGrantBind {
		return &Result{Decision: decision, License: record}, nil
	}

	errBind := s.store.Bind(ctx, key, deviceID, now)
	switch {
	case errBind == nil:
		record.BoundDeviceID = &deviceID
		record.IssuedAt = &now
		return &Result{Decision: DecisionGrantBind, License: record}, nil
	case errors.Is(errBind, store.ErrAlreadyBound):
		if !allowRetry {
			return &Result{Decision: DecisionDeviceMismatch, License: record}, nil
		}
		return s.validateOnce(ctx, key, deviceID, false)
	case errors.Is(errBind, store.ErrNotFound):
		return &Result{Decision: DecisionNotFound}, nil
	default:
		return nil, fmt.Errorf("license: bind record: %w", errBind)
	}
}

// observe emits the structured log line and audit event for a decision.
func (s *Service) observe(ctx context.Context, key, deviceID string, result *Result) {
	now := s.clock.Now()
	fields := log.Fields{
		"key":      audit.TruncateKey(key),
		"device":   audit.DeviceDigest(deviceID),
		"decision": result.Decision.String(),
		"granted":  result.Granted(),
	}
	if result.Granted() {
		log.WithFields(fields).Info("license validated")
	} else {
		log.WithFields(fields).Warn("license denied")
	}

	if s.audit != nil {
		s.audit.RecordValidation(ctx, key, result.Decision.String(), map[string]any{
			"device":  audit.DeviceDigest(deviceID),
			"granted": result.Granted(),
		}, now)
	}
}
