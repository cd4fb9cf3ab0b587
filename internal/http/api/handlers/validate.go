package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/licensegate/licensegate/internal/license"
	"github.com/licensegate/licensegate/internal/security"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ValidateHandler serves the license validation endpoint.
type ValidateHandler struct {
	svc *license.Service

	entitlementSecret string
	entitlementTTL    time.Duration
	clock             license.Clock
}

// NewValidateHandler constructs a ValidateHandler. An empty secret
// disables entitlement token issuance.
func NewValidateHandler(svc *license.Service, entitlementSecret string, entitlementTTL time.Duration, clock license.Clock) *ValidateHandler {
	if clock == nil {
		clock = license.SystemClock{}
	}
	return &ValidateHandler{
		svc:               svc,
		entitlementSecret: entitlementSecret,
		entitlementTTL:    entitlementTTL,
		clock:             clock,
	}
}

// validateRequest defines the validation request body.
type validateRequest struct {
	Key      string `json:"key"`
	DeviceID string `json:"device_id"`
}

// Validate decides whether a device may use a key, binding on first use.
func (h *ValidateHandler) Validate(c *gin.Context) {
	var body validateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "message": "Missing key or device ID"})
		return
	}

	result, errValidate := h.svc.Validate(c.Request.Context(), body.Key, body.DeviceID)
	if errValidate != nil {
		if errors.Is(errValidate, license.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"valid": false, "message": "Missing key or device ID"})
			return
		}
		log.WithError(errValidate).Error("validate license failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"valid": false, "message": "Service temporarily unavailable"})
		return
	}

	status, message := decisionResponse(result.Decision)
	if !result.Granted() {
		c.JSON(status, gin.H{"valid": false, "message": message})
		return
	}

	payload := gin.H{"valid": true, "message": message}
	if exp := result.License.ExpiresAt(); exp != nil {
		payload["expires_at"] = exp.UTC()
	}
	if h.entitlementSecret != "" {
		now := h.clock.Now()
		var licenseExpiry time.Time
		if exp := result.License.ExpiresAt(); exp != nil {
			licenseExpiry = *exp
		}
		token, errSign := security.SignEntitlement(h.entitlementSecret, body.Key, body.DeviceID, now, licenseExpiry, h.entitlementTTL)
		if errSign != nil {
			log.WithError(errSign).Error("sign entitlement token failed")
		} else {
			payload["entitlement_token"] = token
		}
	}
	c.JSON(http.StatusOK, payload)
}

// decisionResponse maps a policy decision to an HTTP status and message.
func decisionResponse(decision license.Decision) (int, string) {
	switch decision {
	case license.DecisionNotFound:
		return http.StatusUnauthorized, "Invalid key"
	case license.DecisionRevoked:
		return http.StatusForbidden, "Key has been revoked"
	case license.DecisionExpired:
		return http.StatusForbidden, "License has expired"
	case license.DecisionDeviceMismatch:
		return http.StatusForbidden, "Key is already in use on another device"
	default:
		return http.StatusOK, "License validated successfully"
	}
}
