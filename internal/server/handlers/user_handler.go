package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/service/rating"
)

// UserHandler handles user ledger creation and reads.
type UserHandler struct {
	svc    *rating.Service
	logger *zap.Logger
}

// NewUserHandler constructs the HTTP handler adapter.
func NewUserHandler(svc *rating.Service, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{svc: svc, logger: logger}
}

type createUserRequest struct {
	UID string `json:"uid"`
}

// Create makes an empty ledger for the uid. 201 when newly created, 200
// when the ledger already existed.
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid user payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !uidAuthorized(c, req.UID) {
		respondForbidden(c)
		return
	}

	created, err := h.svc.CreateUser(c.Request.Context(), req.UID)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"uid": req.UID})
}

// RatedFood lists the titles the user has rated.
func (h *UserHandler) RatedFood(c *gin.Context) {
	uid := c.Param("uid")
	if !uidAuthorized(c, uid) {
		respondForbidden(c)
		return
	}

	titles, err := h.svc.RatedFood(c.Request.Context(), uid)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ratedFood": titles})
}
