package handler

import (
	"errors"
	"fmt"
	"log"

	"gowa-medtoken/internal/helper"
	"gowa-medtoken/internal/service"

	"github.com/labstack/echo/v4"
)

const tokenMessage = "🔑 Olá! Seu token de acesso é: %s.\n\nUtilize este código para validar o acesso ao sistema."

// Request body for POST /enviar
type SendTokenRequest struct {
	Telefone string `json:"telefone"`
	Token    string `json:"token"`
}

// POST /enviar
func (h *Handler) SendToken(c echo.Context) error {
	var req SendTokenRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", "")
	}

	if req.Telefone == "" || req.Token == "" {
		return ErrorResponse(c, 400, "Informe telefone e token no corpo da requisicao", "VALIDATION_ERROR", "")
	}

	recipient, err := helper.FormatPhoneNumber(req.Telefone)
	if err != nil {
		return ErrorResponse(c, 400, "Telefone inválido", "INVALID_PHONE", err.Error())
	}

	text := fmt.Sprintf(tokenMessage, req.Token)

	if err := h.WA.Send(c.Request().Context(), sessionID(c), recipient, text); err != nil {
		if errors.Is(err, service.ErrSessionUnavailable) {
			return ErrorResponse(c, 503, "Sessão WhatsApp nao ativa. Escaneie o QR code.", "SESSION_UNAVAILABLE", "")
		}
		log.Printf("Erro ao enviar token para %s: %v", recipient.User, err)
		return ErrorResponse(c, 500, "Falha ao enviar mensagem", "SEND_FAILED", "")
	}

	return SuccessResponse(c, 200, "Mensagem enviada", map[string]interface{}{
		"to": recipient.User,
	})
}
