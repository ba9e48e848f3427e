package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pdvlite/nfce-api/internal/application/dto"
	"github.com/pdvlite/nfce-api/internal/application/fiscal"
	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
)

// InutilizacaoHandler registra e consulta inutilizações de faixa.
type InutilizacaoHandler struct {
	uc    *fiscal.InutilizacaoService
	inuts repository.InutilizacaoRepository
}

// NewInutilizacaoHandler constrói o handler.
func NewInutilizacaoHandler(uc *fiscal.InutilizacaoService, inuts repository.InutilizacaoRepository) *InutilizacaoHandler {
	return &InutilizacaoHandler{uc: uc, inuts: inuts}
}

// Create registra a faixa e tenta homologar na hora. A resposta traz o estado
// após a primeira tentativa; se ficou pending, a varredura continua por trás.
// POST /api/v1/inutilizacoes
func (h *InutilizacaoHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateInutilizacaoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}

	inut, err := h.uc.Request(c.Context(), fiscal.InutilizacaoRequest{
		Serie:         in.Serie,
		NumeroInicial: in.NumeroInicial,
		NumeroFinal:   in.NumeroFinal,
		Justificativa: in.Justificativa,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		case errors.Is(err, domain.ErrConflict):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "faixa já registrada"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
	}

	// O estado pós-tentativa está em banco; a cópia em memória é anterior.
	persisted, err := h.inuts.GetByID(c.Context(), inut.ID)
	if err != nil || persisted == nil {
		persisted = inut
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewInutilizacaoResponse(persisted))
}

// GetByID consulta o estado de uma inutilização.
// GET /api/v1/inutilizacoes/:id
func (h *InutilizacaoHandler) GetByID(c *fiber.Ctx) error {
	inut, err := h.inuts.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if inut == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "inutilização não encontrada"})
	}
	return c.JSON(dto.NewInutilizacaoResponse(inut))
}
