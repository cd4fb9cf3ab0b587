package api

import (
	"github.com/licensegate/licensegate/internal/audit"
	"github.com/licensegate/licensegate/internal/config"
	internalhttp "github.com/licensegate/licensegate/internal/http"
	"github.com/licensegate/licensegate/internal/http/api/handlers"
	"github.com/licensegate/licensegate/internal/license"
	"github.com/licensegate/licensegate/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps bundles the collaborators needed to serve the API.
type Deps struct {
	DB       *gorm.DB
	Service  *license.Service
	Admin    *license.AdminService
	Recorder audit.Recorder
	Limiter  ratelimit.Limiter
	Clock    license.Clock
	Config   config.Config
}

// RegisterRoutes registers the validation, health, and admin routes.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	validateHandler := handlers.NewValidateHandler(
		deps.Service,
		deps.Config.Entitlement.Secret,
		deps.Config.Entitlement.TTL(),
		deps.Clock,
	)
	r.POST("/v1/licenses/validate",
		internalhttp.RateLimitMiddleware(deps.Limiter),
		validateHandler.Validate,
	)

	admin := r.Group("/v1/admin")
	admin.Use(internalhttp.AdminAuthMiddleware(deps.Config.Admin.TokenHash))

	licenseHandler := handlers.NewLicenseHandler(deps.Admin, deps.Clock)
	admin.POST("/licenses", licenseHandler.Create)
	admin.POST("/licenses/bulk", licenseHandler.BulkCreate)
	admin.POST("/licenses/generate", licenseHandler.Generate)
	admin.GET("/licenses", licenseHandler.List)
	admin.GET("/licenses/:key", licenseHandler.Get)
	admin.POST("/licenses/:key/revoke", licenseHandler.Revoke)
	admin.POST("/licenses/:key/reinstate", licenseHandler.Reinstate)
	admin.PUT("/licenses/:key/validity", licenseHandler.ModifyValidity)

	eventHandler := handlers.NewEventHandler(deps.Recorder)
	admin.GET("/events", eventHandler.List)
}
