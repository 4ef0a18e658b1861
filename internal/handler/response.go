package handler

import (
	"github.com/labstack/echo/v4"
)

// SuccessResponse is the standard success envelope.
func SuccessResponse(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// ErrorResponse is the standard failure envelope: a machine-readable error
// code plus a short human message. Internal error details never leave the
// server through here.
func ErrorResponse(c echo.Context, code int, message, errCode, detail string) error {
	resp := map[string]interface{}{
		"success": false,
		"message": message,
		"error":   errCode,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	return c.JSON(code, resp)
}
