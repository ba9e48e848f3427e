package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pdvlite/nfce-api/internal/application/fiscal"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
)

// RouterDeps dependências do router.
type RouterDeps struct {
	Sales     repository.SaleRepository
	Inuts     repository.InutilizacaoRepository
	Scheduler *fiscal.TransmitScheduler
	CancelUC  *fiscal.CancelService
	InutUC    *fiscal.InutilizacaoService
	CertUC    *fiscal.CertificateService
}

// Router registra as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api/v1")

	// Vendas: ciclo fiscal da NFC-e
	saleHandler := NewSaleHandler(deps.Sales, deps.Scheduler, deps.CancelUC)
	vendas := api.Group("/vendas")
	vendas.Get("/:id", saleHandler.GetByID)
	vendas.Get("/:id/xml", saleHandler.GetXML)
	vendas.Post("/:id/transmitir", saleHandler.Transmit)
	vendas.Post("/:id/cancelar", saleHandler.Cancel)

	// Inutilização de faixas de numeração
	inutHandler := NewInutilizacaoHandler(deps.InutUC, deps.Inuts)
	inuts := api.Group("/inutilizacoes")
	inuts.Post("/", inutHandler.Create)
	inuts.Get("/:id", inutHandler.GetByID)

	// Certificado digital do emitente
	certHandler := NewCertificateHandler(deps.CertUC)
	api.Get("/certificado", certHandler.Inspect)
}
