package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fintrack/internal/logger"
)

// ConnectionServer upgrades and serves a notification connection.
type ConnectionServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// NotificationHandler serves the WebSocket notification stream.
type NotificationHandler struct {
	hub ConnectionServer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(hub ConnectionServer) *NotificationHandler {
	return &NotificationHandler{hub: hub}
}

// Connect upgrades the request to a WebSocket that receives the user's events.
// @Summary     Notification stream
// @Description WebSocket carrying budget alerts, goal updates and recurring materializations. Authenticate with ?token=.
// @Tags        notifications
// @Param       token query string true "Access token"
// @Success     101 "Switching protocols"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /ws [get]
func (h *NotificationHandler) Connect(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// The upgrader has already written a response on failure.
	if err := h.hub.Serve(c.Writer, c.Request, userID); err != nil {
		logger.Get().Warnw("websocket upgrade failed", "error", err, "user_id", userID)
	}
}
