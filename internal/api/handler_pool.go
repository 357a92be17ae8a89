package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resource-pool-backend/internal/engine"
	"resource-pool-backend/internal/model"
)

type requestResourceBody struct {
	ResourceID  string     `json:"resource_id" binding:"required"`
	UserID      string     `json:"user_id" binding:"required"`
	DueReturnAt *time.Time `json:"due_return_at"`
}

// PostRequest handles POST /api/requests.
func (h *Handler) PostRequest(c *gin.Context) {
	var body requestResourceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.RequestResource(c.Request.Context(), body.ResourceID, body.UserID, body.DueReturnAt)
	if errors.Is(err, engine.ErrUnknownResource) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown resource", "resource_id": body.ResourceID})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type returnResourceBody struct {
	ResourceID string `json:"resource_id" binding:"required"`
	UserID     string `json:"user_id" binding:"required"`
}

// PostReturn handles POST /api/returns.
func (h *Handler) PostReturn(c *gin.Context) {
	var body returnResourceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.ReturnResource(c.Request.Context(), body.ResourceID, body.UserID)
	if errors.Is(err, engine.ErrNoActiveAssignment) {
		c.JSON(http.StatusConflict, gin.H{"error": "no active assignment", "resource_id": body.ResourceID})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAssignments handles GET /api/assignments?user_id=.
func (h *Handler) GetAssignments(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	assignments, err := h.engine.ListMyAssignments(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assignments"})
		return
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	c.JSON(http.StatusOK, assignments)
}

// GetResources handles GET /api/resources?type=.
func (h *Handler) GetResources(c *gin.Context) {
	typeFilter := model.ResourceType(c.Query("type"))
	switch typeFilter {
	case "", model.TypeEquipment, model.TypeLicense, model.TypeParking:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown resource type"})
		return
	}

	resources, err := h.engine.ListResources(c.Request.Context(), typeFilter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list resources"})
		return
	}
	c.JSON(http.StatusOK, resources)
}

// GetUtilization handles GET /api/utilization?resource_id=&from=&to=.
func (h *Handler) GetUtilization(c *gin.Context) {
	for _, bound := range []string{c.Query("from"), c.Query("to")} {
		if bound == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, bound); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD"})
			return
		}
	}

	records, err := h.engine.GetUtilization(c.Request.Context(), c.Query("resource_id"), c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query utilization"})
		return
	}
	c.JSON(http.StatusOK, records)
}
