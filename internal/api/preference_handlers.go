package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/docmem/docmem/internal/auth"
	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PreferenceHandler stores a per-user JSON blob of client settings.
type PreferenceHandler struct {
	db *database.Database
}

func NewPreferenceHandler(db *database.Database) *PreferenceHandler {
	return &PreferenceHandler{db: db}
}

func (h *PreferenceHandler) GetPreferences(c *gin.Context) {
	user := auth.UserFromContext(c)

	var pref models.Preference
	err := h.db.First(&pref, "user_id = ?", user.UserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondData(c, http.StatusOK, gin.H{})
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch preferences")
		return
	}

	respondData(c, http.StatusOK, json.RawMessage(pref.Data))
}

func (h *PreferenceHandler) PutPreferences(c *gin.Context) {
	user := auth.UserFromContext(c)

	var body json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid preferences payload")
		return
	}

	pref := models.Preference{
		UserID:    user.UserID,
		Data:      string(body),
		UpdatedAt: time.Now(),
	}
	if err := h.db.Save(&pref).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save preferences")
		return
	}

	respondData(c, http.StatusOK, body)
}
