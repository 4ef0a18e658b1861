package handler

import (
	"log"

	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"
)

// GET /qr and GET /qr/:sessionId
//
// Streams the current pairing QR as a PNG. Once the session connects the
// stored token is stale and this returns 404 again.
func (h *Handler) GetQR(c echo.Context) error {
	id := sessionID(c)

	qr, ok := h.WA.CurrentQR(id)
	if !ok {
		return ErrorResponse(c, 404, "QR ainda nao gerado", "QR_NOT_AVAILABLE", "")
	}

	png, err := qrcode.Encode(qr, qrcode.Medium, 300)
	if err != nil {
		log.Printf("Failed to render QR for session %s: %v", id, err)
		return ErrorResponse(c, 500, "Falha ao gerar imagem do QR", "QR_RENDER_FAILED", "")
	}

	return c.Blob(200, "image/png", png)
}
