package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
)

// SaleResponse venda com o estado fiscal para GET /api/v1/vendas/:id.
type SaleResponse struct {
	ID             string             `json:"id"`
	Numero         int64              `json:"numero"`
	Serie          int                `json:"serie"`
	CustomerID     string             `json:"customer_id,omitempty"`
	Total          decimal.Decimal    `json:"total"`
	PaymentMethod  string             `json:"payment_method"`
	Status         string             `json:"status"`
	ChaveAcesso    string             `json:"chave_acesso,omitempty"`
	Protocolo      string             `json:"protocolo,omitempty"`
	CancelProtocol string             `json:"cancel_protocol,omitempty"`
	QRCode         string             `json:"qr_code,omitempty"`
	ErrorMessage   string             `json:"error_message,omitempty"`
	AuthorizedAt   *time.Time         `json:"authorized_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Items          []SaleItemResponse `json:"items"`
}

// SaleItemResponse linha da venda em respostas.
type SaleItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewSaleResponse projeta a entidade na resposta. O XML assinado fica de fora
// do JSON por tamanho; quem precisa dele baixa pelo endpoint dedicado.
func NewSaleResponse(s *entity.Sale) SaleResponse {
	items := make([]SaleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, SaleItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return SaleResponse{
		ID:             s.ID,
		Numero:         s.Numero,
		Serie:          s.Serie,
		CustomerID:     s.CustomerID,
		Total:          s.Total,
		PaymentMethod:  s.PaymentMethod,
		Status:         s.Status,
		ChaveAcesso:    s.ChaveAcesso,
		Protocolo:      s.Protocolo,
		CancelProtocol: s.CancelProtocol,
		QRCode:         s.QRCode,
		ErrorMessage:   s.ErrorMessage,
		AuthorizedAt:   s.AuthorizedAt,
		CreatedAt:      s.CreatedAt,
		Items:          items,
	}
}

// TransmitResponse confirmação do agendamento da transmissão.
type TransmitResponse struct {
	SaleID   string `json:"sale_id"`
	Enqueued bool   `json:"enqueued"`
	Message  string `json:"message"`
}

// CancelSaleRequest body para POST /api/v1/vendas/:id/cancelar.
type CancelSaleRequest struct {
	Justificativa string `json:"justificativa"`
}

// CreateInutilizacaoRequest body para POST /api/v1/inutilizacoes.
type CreateInutilizacaoRequest struct {
	Serie         int    `json:"serie"`
	NumeroInicial int64  `json:"numero_inicial"`
	NumeroFinal   int64  `json:"numero_final"`
	Justificativa string `json:"justificativa"`
}

// InutilizacaoResponse estado da inutilização em respostas.
type InutilizacaoResponse struct {
	ID            string     `json:"id"`
	Serie         int        `json:"serie"`
	NumeroInicial int64      `json:"numero_inicial"`
	NumeroFinal   int64      `json:"numero_final"`
	Justificativa string     `json:"justificativa"`
	Status        string     `json:"status"`
	Protocolo     string     `json:"protocolo,omitempty"`
	CStat         string     `json:"cstat,omitempty"`
	Motivo        string     `json:"motivo,omitempty"`
	RetryCount    int        `json:"retry_count"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewInutilizacaoResponse projeta a entidade na resposta.
func NewInutilizacaoResponse(i *entity.Inutilizacao) InutilizacaoResponse {
	return InutilizacaoResponse{
		ID:            i.ID,
		Serie:         i.Serie,
		NumeroInicial: i.NumeroInicial,
		NumeroFinal:   i.NumeroFinal,
		Justificativa: i.Justificativa,
		Status:        i.Status,
		Protocolo:     i.Protocolo,
		CStat:         i.CStat,
		Motivo:        i.Motivo,
		RetryCount:    i.RetryCount,
		NextRetryAt:   i.NextRetryAt,
		CreatedAt:     i.CreatedAt,
	}
}

// CertificateResponse metadados do certificado para GET /api/v1/certificado.
type CertificateResponse struct {
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	Valid        bool      `json:"valid"`
}
