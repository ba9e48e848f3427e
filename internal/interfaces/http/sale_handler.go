package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pdvlite/nfce-api/internal/application/dto"
	"github.com/pdvlite/nfce-api/internal/application/fiscal"
	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
)

// SaleHandler trata o ciclo fiscal da venda: disparo da transmissão, consulta
// do estado e cancelamento.
type SaleHandler struct {
	sales     repository.SaleRepository
	scheduler *fiscal.TransmitScheduler
	cancelUC  *fiscal.CancelService
}

// NewSaleHandler constrói o handler.
func NewSaleHandler(sales repository.SaleRepository, scheduler *fiscal.TransmitScheduler, cancelUC *fiscal.CancelService) *SaleHandler {
	return &SaleHandler{sales: sales, scheduler: scheduler, cancelUC: cancelUC}
}

// Transmit agenda a transmissão da venda para a SEFAZ. Responde 202: o
// resultado chega pela consulta do estado, não nesta chamada.
// POST /api/v1/vendas/:id/transmitir
func (h *SaleHandler) Transmit(c *fiber.Ctx) error {
	id := c.Params("id")
	sale, err := h.sales.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if sale == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "venda não encontrada"})
	}
	if !sale.CanTransmit() {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "INVALID_STATUS",
			Message: "venda em status " + sale.Status + " não pode ser transmitida",
		})
	}

	enqueued := h.scheduler.Enqueue(id)
	msg := "transmissão agendada"
	if !enqueued {
		msg = "transmissão já em andamento"
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.TransmitResponse{
		SaleID:   id,
		Enqueued: enqueued,
		Message:  msg,
	})
}

// GetByID devolve a venda com o estado fiscal corrente.
// GET /api/v1/vendas/:id
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	sale, err := h.sales.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if sale == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "venda não encontrada"})
	}
	return c.JSON(dto.NewSaleResponse(sale))
}

// GetXML devolve o documento assinado. Só existe depois da transmissão.
// GET /api/v1/vendas/:id/xml
func (h *SaleHandler) GetXML(c *fiber.Ctx) error {
	sale, err := h.sales.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if sale == nil || sale.XMLAssinado == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "XML não disponível para esta venda"})
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.SendString(sale.XMLAssinado)
}

// Cancel registra o evento de cancelamento junto à SEFAZ. Síncrono.
// POST /api/v1/vendas/:id/cancelar
func (h *SaleHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}

	sale, err := h.cancelUC.Cancel(c.Context(), c.Params("id"), in.Justificativa)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "venda não encontrada"})
		case errors.Is(err, domain.ErrTransicaoInvalida):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_STATUS", Message: err.Error()})
		case errors.Is(err, domain.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		case errors.Is(err, domain.ErrCertificadoNaoConfigurado):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "NO_CERTIFICATE", Message: err.Error()})
		default:
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "SEFAZ", Message: err.Error()})
		}
	}
	return c.JSON(dto.NewSaleResponse(sale))
}
