package handlers

import (
	"net/http"
	"strings"

	"crosplit/internal/apperr"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/models"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	store  *database.Database
	logger *logger.Logger
}

func NewSettingsHandler(store *database.Database, logger *logger.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: logger}
}

// Get returns the settings with secrets masked.
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.store.GetSettings(c.Request.Context())
	if apperr.Is(err, apperr.KindConfiguration) {
		c.JSON(http.StatusOK, gin.H{"data": models.Setting{}, "configured": false})
		return
	}
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings.Masked(), "configured": settings.HasConvertCredentials()})
}

// Update writes the settings. Secret fields left empty or echoing the masked value keep their stored value.
func (h *SettingsHandler) Update(c *gin.Context) {
	var request models.Setting
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.store.GetSettings(c.Request.Context())
	if err != nil && !apperr.Is(err, apperr.KindConfiguration) {
		respondError(c, h.logger, err, nil)
		return
	}

	request.ConvertAPIKey = keepSecret(request.ConvertAPIKey, existing.ConvertAPIKey)
	request.ConvertSecretKey = keepSecret(request.ConvertSecretKey, existing.ConvertSecretKey)
	request.OpenAIAPIKey = keepSecret(request.OpenAIAPIKey, existing.OpenAIAPIKey)
	request.StorefrontURL = strings.TrimRight(strings.TrimSpace(request.StorefrontURL), "/")

	saved, err := h.store.SaveSettings(c.Request.Context(), request)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	h.logger.Info("Settings updated")
	c.JSON(http.StatusOK, gin.H{"data": saved.Masked(), "configured": saved.HasConvertCredentials()})
}

// keepSecret returns stored when the form sent back nothing or the masked value it was given.
func keepSecret(submitted, stored string) string {
	submitted = strings.TrimSpace(submitted)
	if submitted == "" || submitted == models.MaskSecret(stored) {
		return stored
	}
	return submitted
}
