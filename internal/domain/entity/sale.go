package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados do ciclo de vida fiscal da venda. As transições são monotônicas,
// exceto o caminho de retentativa error → processing.
const (
	SaleStatusDraft             = "draft"              // Criada, numeração reservada
	SaleStatusProcessing        = "processing"         // Job de transmissão em andamento
	SaleStatusAuthorizedPending = "authorized_pending" // Lote recebido (cStat 103), aguardando recibo
	SaleStatusAuthorized        = "authorized"         // Autorizada pela SEFAZ (cStat 100), terminal
	SaleStatusError             = "error"              // Falha após esgotar tentativas, recuperação manual
	SaleStatusCanceled          = "canceled"           // Evento de cancelamento homologado, terminal
)

// Sale representa a transação fiscal (venda de balcão com NFC-e).
type Sale struct {
	ID             string
	Numero         int64  // Número sequencial interno (nNF), atribuído na criação
	Serie          int    // Série do documento
	CustomerID     string // Vazio = consumidor não identificado (estado válido)
	Total          decimal.Decimal
	PaymentMethod  string // dinheiro, cartao_credito, ... (ver pkg/nfe)
	Status         string
	ChaveAcesso    string // 44 dígitos, preenchida pela transmissão
	Recibo         string // nRec do lote (cStat 103), consumido pela consulta do recibo
	Protocolo      string // nProt da autorização
	CancelProtocol string // nProt do evento de cancelamento (distinto do anterior)
	QRCode         string // URL do QR code de consulta
	XMLAssinado    string // Documento assinado persistido
	ErrorMessage   string // Último xMotivo ou erro de transporte, literal
	AuthorizedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Items []*SaleItem
}

// CanTransmit informa se o job de transmissão pode atuar sobre a venda.
// authorized e canceled são terminais: o guard torna o job idempotente
// contra agendamento duplicado.
func (s *Sale) CanTransmit() bool {
	switch s.Status {
	case SaleStatusDraft, SaleStatusAuthorizedPending, SaleStatusError, SaleStatusProcessing:
		return true
	}
	return false
}
