package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type postMessageBody struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

// PostMessage handles POST /api/messages: the chat front. The reply is always
// 200 with reply text; business failures surface as plain-language reasons in
// the reply, not HTTP errors.
func (h *Handler) PostMessage(c *gin.Context) {
	var body postMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply := h.dispatcher.Handle(c.Request.Context(), body.UserID, body.Text)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
