package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/licensegate/licensegate/internal/license"
	"github.com/licensegate/licensegate/internal/models"
	"github.com/licensegate/licensegate/internal/store"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// LicenseHandler serves administrative license endpoints.
type LicenseHandler struct {
	admin *license.AdminService
	clock license.Clock
}

// NewLicenseHandler constructs a LicenseHandler.
func NewLicenseHandler(admin *license.AdminService, clock license.Clock) *LicenseHandler {
	if clock == nil {
		clock = license.SystemClock{}
	}
	return &LicenseHandler{admin: admin, clock: clock}
}

// createLicenseRequest defines the request body for key creation.
type createLicenseRequest struct {
	Key          string          `json:"key"`
	ValidForDays int             `json:"valid_for_days"`
	Notes        json.RawMessage `json:"notes"`
}

// Create inserts a single new license key.
func (h *LicenseHandler) Create(c *gin.Context) {
	var body createLicenseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	record, errCreate := h.admin.CreateKey(c.Request.Context(), body.Key, body.ValidForDays, body.Notes)
	if errCreate != nil {
		h.writeError(c, errCreate, "create license failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"license": h.serializeLicense(record)})
}

// bulkCreateRequest defines the request body for bulk key creation.
type bulkCreateRequest struct {
	Keys         []string `json:"keys"`
	ValidForDays int      `json:"valid_for_days"`
}

// BulkCreate inserts all keys not already present, skipping duplicates.
func (h *LicenseHandler) BulkCreate(c *gin.Context) {
	var body bulkCreateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Keys) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keys are required"})
		return
	}

	created, skipped, errBulk := h.admin.BulkCreate(c.Request.Context(), body.Keys, body.ValidForDays)
	if errBulk != nil {
		h.writeError(c, errBulk, "bulk create failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created, "skipped": skipped})
}

// generateRequest defines the request body for key generation.
type generateRequest struct {
	Count        int    `json:"count"`
	ValidForDays int    `json:"valid_for_days"`
	Groups       int    `json:"groups"`
	GroupLength  int    `json:"group_length"`
	Separator    string `json:"separator"`
}

// Generate creates count fresh random keys and inserts them.
func (h *LicenseHandler) Generate(c *gin.Context) {
	var body generateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	format := license.KeyFormat{
		Groups:      body.Groups,
		GroupLength: body.GroupLength,
		Separator:   body.Separator,
	}
	keys, errGenerate := h.admin.GenerateKeys(c.Request.Context(), body.Count, body.ValidForDays, format)
	if errGenerate != nil {
		h.writeError(c, errGenerate, "generate licenses failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"keys": keys, "count": len(keys)})
}

// listLicensesQuery defines query parameters for listing licenses.
type listLicensesQuery struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=50"`
	Search string `form:"search"`
	Status string `form:"status"`
}

// List returns licenses ordered by creation time descending.
func (h *LicenseHandler) List(c *gin.Context) {
	var q listLicensesQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	rows, total, errList := h.admin.ListKeys(c.Request.Context(), store.ListOptions{
		Page:   q.Page,
		Limit:  q.Limit,
		Search: q.Search,
		Status: q.Status,
	})
	if errList != nil {
		h.writeError(c, errList, "list licenses failed")
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, h.serializeLicense(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"licenses": out,
		"total":    total,
		"page":     q.Page,
		"limit":    q.Limit,
	})
}

// Get returns a single license by key.
func (h *LicenseHandler) Get(c *gin.Context) {
	record, errGet := h.admin.GetKey(c.Request.Context(), c.Param("key"))
	if errGet != nil {
		h.writeError(c, errGet, "get license failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"license": h.serializeLicense(record)})
}

// Revoke marks a key revoked. Idempotent.
func (h *LicenseHandler) Revoke(c *gin.Context) {
	if errRevoke := h.admin.RevokeKey(c.Request.Context(), c.Param("key")); errRevoke != nil {
		h.writeError(c, errRevoke, "revoke license failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// Reinstate clears the revocation flag. Idempotent.
func (h *LicenseHandler) Reinstate(c *gin.Context) {
	if errReinstate := h.admin.ReinstateKey(c.Request.Context(), c.Param("key")); errReinstate != nil {
		h.writeError(c, errReinstate, "reinstate license failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": false})
}

// modifyValidityRequest defines the request body for validity updates.
type modifyValidityRequest struct {
	ValidForDays int `json:"valid_for_days"`
}

// ModifyValidity replaces a key's validity window. Expiration is derived,
// so bound keys see their expiry move.
func (h *LicenseHandler) ModifyValidity(c *gin.Context) {
	var body modifyValidityRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errModify := h.admin.ModifyValidity(c.Request.Context(), c.Param("key"), body.ValidForDays); errModify != nil {
		h.writeError(c, errModify, "modify validity failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid_for_days": body.ValidForDays})
}

// serializeLicense converts a model to an API response payload.
func (h *LicenseHandler) serializeLicense(record *models.License) gin.H {
	now := h.clock.Now()
	var expiresAt *time.Time
	if exp := record.ExpiresAt(); exp != nil {
		utc := exp.UTC()
		expiresAt = &utc
	}
	return gin.H{
		"key":             record.Key,
		"revoked":         record.Revoked,
		"valid_for_days":  record.ValidForDays,
		"bound_device_id": record.BoundDeviceID,
		"issued_at":       record.IssuedAt,
		"expires_at":      expiresAt,
		"status":          record.Status(now),
		"notes":           record.Notes,
		"created_at":      record.CreatedAt,
		"updated_at":      record.UpdatedAt,
	}
}

// writeError maps service and store errors to HTTP responses.
func (h *LicenseHandler) writeError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
	case errors.Is(err, store.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": "license key already exists"})
	case errors.Is(err, license.ErrInvalidKey),
		errors.Is(err, license.ErrInvalidValidity),
		errors.Is(err, license.ErrInvalidCount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error(logMsg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
