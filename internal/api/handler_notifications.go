package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resource-pool-backend/internal/model"
)

// GetNotifications handles GET /api/notifications?user_id=.
func (h *Handler) GetNotifications(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	notifications, err := h.engine.Notifications(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	c.JSON(http.StatusOK, notifications)
}

// DeleteNotifications handles DELETE /api/notifications?user_id=.
func (h *Handler) DeleteNotifications(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if err := h.engine.ClearNotifications(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear notifications"})
		return
	}
	c.Status(http.StatusNoContent)
}
