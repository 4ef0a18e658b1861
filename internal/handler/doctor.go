package handler

import (
	"errors"
	"log"

	"gowa-medtoken/internal/helper"
	"gowa-medtoken/internal/service"

	"github.com/labstack/echo/v4"
)

// Request body for POST /cadastro-medico
type RegisterDoctorRequest struct {
	Telefone   string `json:"telefone"`
	NomeMedico string `json:"nome_medico"`
	Link       string `json:"link"`
}

// POST /cadastro-medico
func (h *Handler) RegisterDoctor(c echo.Context) error {
	var req RegisterDoctorRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", "")
	}

	if req.Telefone == "" || req.NomeMedico == "" || req.Link == "" {
		return ErrorResponse(c, 400, "Informe telefone, nome_medico e link no corpo da requisicao", "VALIDATION_ERROR", "")
	}

	recipient, err := helper.FormatPhoneNumber(req.Telefone)
	if err != nil {
		return ErrorResponse(c, 400, "Telefone inválido", "INVALID_PHONE", err.Error())
	}

	doctor, err := h.Confirm.Register(c.Request().Context(), sessionID(c), recipient, req.NomeMedico, req.Link)
	if err != nil {
		if errors.Is(err, service.ErrSessionUnavailable) {
			return ErrorResponse(c, 503, "Sessão WhatsApp nao ativa. Escaneie o QR code.", "SESSION_UNAVAILABLE", "")
		}
		log.Printf("Erro ao cadastrar médico %s: %v", recipient.User, err)
		return ErrorResponse(c, 500, "Falha ao registrar cadastro", "REGISTRATION_FAILED", "")
	}

	return SuccessResponse(c, 200, "Cadastro registrado, aguardando confirmação", map[string]interface{}{
		"registrationId": doctor.RegistrationID,
		"to":             recipient.User,
		"state":          string(doctor.State),
	})
}
