package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/service/rating"
)

// RatingHandler handles rating submissions and macro tracking.
type RatingHandler struct {
	svc    *rating.Service
	logger *zap.Logger
}

// NewRatingHandler constructs the HTTP handler adapter.
func NewRatingHandler(svc *rating.Service, logger *zap.Logger) *RatingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatingHandler{svc: svc, logger: logger}
}

type submitRatingRequest struct {
	Title string  `json:"title"`
	UID   string  `json:"uid"`
	Value float64 `json:"value"`
}

// SubmitRating applies one rating submission and returns the updated item.
func (h *RatingHandler) SubmitRating(c *gin.Context) {
	var req submitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid rating payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !uidAuthorized(c, req.UID) {
		respondForbidden(c)
		return
	}

	item, err := h.svc.SubmitRating(c.Request.Context(), req.Title, req.UID, req.Value)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

type foodItemPayload struct {
	Title           string            `json:"title"`
	NutritionalInfo map[string]string `json:"nutritional_info"`
}

type logMacrosRequest struct {
	UID         string          `json:"uid"`
	ServingSize float64         `json:"servingSize"`
	FoodItem    foodItemPayload `json:"foodItem"`
}

// LogMacros accumulates a food item's tracked nutrients into the user's
// macro totals.
func (h *RatingHandler) LogMacros(c *gin.Context) {
	var req logMacrosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid macro payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !uidAuthorized(c, req.UID) {
		respondForbidden(c)
		return
	}

	macros, err := h.svc.LogMacros(c.Request.Context(), req.UID, req.ServingSize, req.FoodItem.NutritionalInfo)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"macros": macros})
}

type resetMacrosRequest struct {
	UID string `json:"uid"`
}

// ResetMacros zeroes the user's macro accumulators.
func (h *RatingHandler) ResetMacros(c *gin.Context) {
	var req resetMacrosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid macro reset payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !uidAuthorized(c, req.UID) {
		respondForbidden(c)
		return
	}

	if err := h.svc.ResetMacros(c.Request.Context(), req.UID); err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// uidAuthorized reports whether the request may act for uid. When the
// identity middleware resolved a bearer token the verified uid must match
// the one in the request; without a verifier the context carries no uid and
// the request is trusted as-is.
func uidAuthorized(c *gin.Context, uid string) bool {
	verified := c.GetString("uid")
	return verified == "" || verified == uid
}

func respondForbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "uid does not match the authenticated user"})
}

// respondError maps service errors onto the API's status codes: validation
// failures are 400, missing users/items 404, exhausted correction retries
// 409, anything else a 500 with a generic body.
func respondError(logger *zap.Logger, c *gin.Context, err error) {
	switch {
	case errors.Is(err, rating.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, rating.ErrUserNotFound),
		errors.Is(err, rating.ErrItemNotFound),
		errors.Is(err, rating.ErrNeverRated):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, rating.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("storage failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	}
}
