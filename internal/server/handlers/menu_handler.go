package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/service/menu"
)

// MenuHandler serves today's menu.
type MenuHandler struct {
	svc    *menu.Service
	logger *zap.Logger
}

// NewMenuHandler constructs the HTTP handler adapter.
func NewMenuHandler(svc *menu.Service, logger *zap.Logger) *MenuHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MenuHandler{svc: svc, logger: logger}
}

// TodaysItems returns every catalog item on today's menu.
func (h *MenuHandler) TodaysItems(c *gin.Context) {
	items, err := h.svc.TodaysItems(c.Request.Context())
	if err != nil {
		h.logger.Error("failed loading today's items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load today's items"})
		return
	}

	c.JSON(http.StatusOK, items)
}
