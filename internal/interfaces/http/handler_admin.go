package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"persona_relay/internal/entities"
	"persona_relay/internal/repository"
	"persona_relay/internal/usecases"
)

// AdminHandler exposes operational endpoints. Credentials are only ever returned masked.
type AdminHandler struct {
	credentials *repository.CredentialRepository
	personas    *usecases.PersonaRegistry
	log         zerolog.Logger
}

func NewAdminHandler(credentials *repository.CredentialRepository, personas *usecases.PersonaRegistry, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		credentials: credentials,
		personas:    personas,
		log:         log,
	}
}

func (h *AdminHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/personas", h.ListPersonas)
	admin.GET("/tenants/:id", h.GetTenant)
	admin.PUT("/tenants/:id/credential", h.SetCredential)
}

func (h *AdminHandler) ListPersonas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"personas": h.personas.Names()})
}

func (h *AdminHandler) GetTenant(c *gin.Context) {
	id := c.Param("id")
	if !ValidTenantID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant id"})
		return
	}

	tenant, err := h.credentials.Tenant(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("tenant_id", id).Msg("tenant lookup failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Credential store unavailable"})
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// SetCredential rotates a tenant's credential through the same validation as chat submissions.
func (h *AdminHandler) SetCredential(c *gin.Context) {
	id := c.Param("id")
	if !ValidTenantID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant id"})
		return
	}

	var req struct {
		Credential string `json:"credential"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	credential := SanitizeString(req.Credential)
	if !ValidateLength(credential, 1, MaxCredentialLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credential length"})
		return
	}

	err := h.credentials.Set(c.Request.Context(), id, credential)
	switch {
	case err == nil:
		h.log.Info().Str("tenant_id", id).Str("admin", c.GetString("admin_subject")).Msg("credential rotated")
		c.JSON(http.StatusOK, gin.H{"status": "saved"})
	case errors.Is(err, entities.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("tenant_id", id).Msg("credential rotation failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Credential store unavailable"})
	}
}
