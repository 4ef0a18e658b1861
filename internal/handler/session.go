package handler

import (
	"errors"
	"log"

	"gowa-medtoken/internal/service"

	"github.com/labstack/echo/v4"
)

// GET /status/:sessionId
func (h *Handler) GetStatus(c echo.Context) error {
	id := sessionID(c)

	sess, err := h.WA.GetSession(id)
	if err != nil {
		return ErrorResponse(c, 404, "Session not found", "SESSION_NOT_FOUND", "")
	}

	return SuccessResponse(c, 200, "Status retrieved", map[string]interface{}{
		"sessionId": sess.ID,
		"status":    string(sess.Status),
		"jid":       sess.JID,
	})
}

// GET /sessions
func (h *Handler) ListSessions(c echo.Context) error {
	sessions := h.WA.Sessions()

	list := make([]map[string]interface{}, 0, len(sessions))
	for _, sess := range sessions {
		list = append(list, map[string]interface{}{
			"sessionId": sess.ID,
			"status":    string(sess.Status),
			"jid":       sess.JID,
		})
	}

	return SuccessResponse(c, 200, "Sessions retrieved", map[string]interface{}{
		"total":    len(list),
		"sessions": list,
	})
}

// POST /sessions/:sessionId/start
func (h *Handler) StartSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return ErrorResponse(c, 400, "sessionId is required", "VALIDATION_ERROR", "")
	}

	if err := h.WA.Start(c.Request().Context(), id); err != nil {
		log.Printf("Failed to start session %s: %v", id, err)
		return ErrorResponse(c, 500, "Falha ao iniciar sessão", "START_FAILED", "")
	}

	return SuccessResponse(c, 200, "Session starting", map[string]interface{}{
		"sessionId": id,
		"nextStep":  "Call GET /qr/" + id + " to get the QR code if the session was never paired",
	})
}

// POST /logout/:sessionId
func (h *Handler) Logout(c echo.Context) error {
	id := c.Param("sessionId")

	if err := h.WA.Logout(c.Request().Context(), id); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return ErrorResponse(c, 404, "Session not found", "SESSION_NOT_FOUND", "")
		}
		return ErrorResponse(c, 500, "Falha ao encerrar sessão", "LOGOUT_FAILED", "")
	}

	return SuccessResponse(c, 200, "Logged out successfully", map[string]interface{}{
		"sessionId": id,
	})
}
