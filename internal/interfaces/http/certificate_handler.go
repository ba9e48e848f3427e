package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pdvlite/nfce-api/internal/application/dto"
	"github.com/pdvlite/nfce-api/internal/application/fiscal"
	"github.com/pdvlite/nfce-api/internal/domain"
)

// CertificateHandler expõe os metadados do certificado digital do emitente.
type CertificateHandler struct {
	uc *fiscal.CertificateService
}

// NewCertificateHandler constrói o handler.
func NewCertificateHandler(uc *fiscal.CertificateService) *CertificateHandler {
	return &CertificateHandler{uc: uc}
}

// Inspect abre o certificado padrão e devolve subject, emissor e validade.
// GET /api/v1/certificado
func (h *CertificateHandler) Inspect(c *fiber.Ctx) error {
	info, err := h.uc.Inspect(c.Context())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCertificadoNaoConfigurado):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NO_CERTIFICATE", Message: err.Error()})
		case errors.Is(err, domain.ErrCertificadoNaoEncontrado):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CERT_FILE_MISSING", Message: err.Error()})
		case errors.Is(err, domain.ErrCertificadoInvalido):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CERT_INVALID", Message: err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
	}
	return c.JSON(dto.CertificateResponse{
		Subject:      info.Subject,
		Issuer:       info.Issuer,
		SerialNumber: info.SerialNumber,
		NotBefore:    info.NotBefore,
		NotAfter:     info.NotAfter,
		Valid:        !info.Expired(time.Now()),
	})
}
