package handler

import (
	"gowa-medtoken/internal/service"

	"github.com/labstack/echo/v4"
)

// DefaultSessionID is used by routes that do not name a session.
const DefaultSessionID = "default"

// Handler bundles the gateway's dependencies for the HTTP routes.
type Handler struct {
	WA      *service.Manager
	Confirm *service.Confirmations
}

func New(wa *service.Manager, confirm *service.Confirmations) *Handler {
	return &Handler{WA: wa, Confirm: confirm}
}

// sessionID resolves the target session: path param first, then the
// ?session query, else the default.
func sessionID(c echo.Context) string {
	if id := c.Param("sessionId"); id != "" {
		return id
	}
	if id := c.QueryParam("session"); id != "" {
		return id
	}
	return DefaultSessionID
}
