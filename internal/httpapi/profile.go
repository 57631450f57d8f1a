package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/petalstore/internal/auth"
	"github.com/safar/petalstore/internal/checkout"
	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/models"
	"github.com/sirupsen/logrus"
)

type ProfileStore interface {
	UpsertProfile(ctx context.Context, profile models.Profile) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

type profileHandlers struct {
	store  ProfileStore
	logger logrus.FieldLogger
}

func (h *profileHandlers) get(c *gin.Context) {
	caller := auth.CallerFrom(c)

	profile, err := h.store.GetProfile(c.Request.Context(), caller.UserID)
	if err != nil {
		if errors.Is(err, database.ErrProfileNotFound) {
			respondMessage(c, http.StatusNotFound, "Profile not found")
			return
		}
		h.logger.WithError(err).WithField("user_id", caller.UserID).Error("load profile failed")
		respondMessage(c, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "profile": profile})
}

type profileRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	FullName string `json:"fullName" binding:"max=200"`
	Phone    string `json:"phone" binding:"max=20"`
}

// save mirrors the signed-in identity into profiles. New rows always start as
// customers; the role is never taken from the request.
func (h *profileHandlers) save(c *gin.Context) {
	caller := auth.CallerFrom(c)

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "A valid email is required")
		return
	}

	phone := ""
	if req.Phone != "" {
		phone = checkout.NormalizePhone(req.Phone)
		if len(phone) != 10 {
			respondMessage(c, http.StatusBadRequest, "Phone number must be 10 digits")
			return
		}
	}

	profile, err := h.store.UpsertProfile(c.Request.Context(), models.Profile{
		ID:       caller.UserID,
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Phone:    phone,
	})
	if err != nil {
		h.logger.WithError(err).WithField("user_id", caller.UserID).Error("save profile failed")
		respondMessage(c, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "profile": profile})
}
