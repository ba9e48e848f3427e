package fiscal

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"math/big"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/entity"
	domainnfe "github.com/pdvlite/nfce-api/internal/domain/nfe"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz"
	"github.com/pdvlite/nfce-api/pkg/logger"
)

// TransmitService executa uma tentativa completa de transmissão:
//
//	guard → chave → XML → assinatura → envio do lote → consulta do recibo → persistência
//
// Cada chamada a Process é uma tentativa; o reagendamento entre tentativas é
// responsabilidade do TransmitScheduler.
type TransmitService struct {
	sales     repository.SaleRepository
	company   repository.CompanyConfigRepository
	certs     repository.CertificateRepository
	customers repository.CustomerRepository
	products  repository.ProductRepository

	chaveGen *domainnfe.ChaveGeneratorService
	builder  XMLBuilder
	signer   sefaz.Signer
	client   SefazClient
	qr       QRCodeGenerator
	loadCert CertLoader

	clock        clockwork.Clock
	log          *logger.Logger
	maxPolls     int
	pollInterval time.Duration
}

// TransmitDeps dependências do serviço de transmissão.
type TransmitDeps struct {
	Sales     repository.SaleRepository
	Company   repository.CompanyConfigRepository
	Certs     repository.CertificateRepository
	Customers repository.CustomerRepository
	Products  repository.ProductRepository

	ChaveGen *domainnfe.ChaveGeneratorService
	Builder  XMLBuilder
	Signer   sefaz.Signer
	Client   SefazClient
	QR       QRCodeGenerator
	LoadCert CertLoader

	Clock        clockwork.Clock
	Log          *logger.Logger
	MaxPolls     int
	PollInterval time.Duration
}

func NewTransmitService(d TransmitDeps) *TransmitService {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.MaxPolls <= 0 {
		d.MaxPolls = 5
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 2 * time.Second
	}
	return &TransmitService{
		sales:        d.Sales,
		company:      d.Company,
		certs:        d.Certs,
		customers:    d.Customers,
		products:     d.Products,
		chaveGen:     d.ChaveGen,
		builder:      d.Builder,
		signer:       d.Signer,
		client:       d.Client,
		qr:           d.QR,
		loadCert:     d.LoadCert,
		clock:        d.Clock,
		log:          d.Log,
		maxPolls:     d.MaxPolls,
		pollInterval: d.PollInterval,
	}
}

// Process roda uma tentativa de transmissão da venda. Retorno nil significa
// venda autorizada ou guard satisfeito (nada a fazer); *TransmitError carrega
// a classificação da falha para o scheduler.
func (s *TransmitService) Process(ctx context.Context, saleID string) error {
	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		return transientErr(fmt.Sprintf("erro ao carregar venda: %v", err), err)
	}
	if sale == nil {
		return fatalErr(fmt.Sprintf("venda %s não encontrada", saleID), domain.ErrNotFound)
	}

	// Guard de idempotência: estados terminais não são retransmitidos,
	// mesmo que o job tenha sido agendado em duplicidade.
	if !sale.CanTransmit() {
		s.log.Info().Str("sale_id", saleID).Str("status", sale.Status).
			Msg("transmissão ignorada: status terminal")
		return nil
	}
	resume := sale.Status == entity.SaleStatusAuthorizedPending && sale.Recibo != ""
	reconcile := sale.Status == entity.SaleStatusAuthorizedPending && sale.Recibo == "" &&
		domainnfe.Validate(sale.ChaveAcesso) == nil

	if err := s.sales.UpdateStatus(ctx, saleID, entity.SaleStatusProcessing, ""); err != nil {
		return transientErr(fmt.Sprintf("erro ao marcar processing: %v", err), err)
	}
	sale.Status = entity.SaleStatusProcessing
	sale.ErrorMessage = ""

	company, err := s.company.Get(ctx)
	if err != nil {
		return fatalErr(fmt.Sprintf("emitente não configurado: %v", err), err)
	}
	cert, terr := s.loadSigningCert(ctx, company.ID)
	if terr != nil {
		return terr
	}

	// Retomada: lote já recebido numa tentativa anterior, falta só o recibo.
	if resume {
		return s.pollReceipt(ctx, sale)
	}

	// Reconciliação: lote enviado mas o recibo se perdeu (queda entre o envio
	// e a persistência). A consulta por chave descobre se a SEFAZ chegou a
	// autorizar; se não, o fluxo normal retransmite com a mesma chave.
	if reconcile {
		res, err := s.client.QueryStatus(ctx, sale.ChaveAcesso)
		if err == nil && res.Success {
			s.log.Info().Str("sale_id", saleID).Str("chave", sale.ChaveAcesso).
				Msg("autorização recuperada por consulta de situação")
			return s.finalizeAuthorized(ctx, sale, res)
		}
	}

	if len(sale.Items) == 0 {
		return fatalErr("venda sem itens", domain.ErrVendaSemItens)
	}

	if err := s.ensureChave(sale, company); err != nil {
		return err
	}

	buildCtx, terr := s.buildContext(ctx, sale, company)
	if terr != nil {
		return terr
	}
	rawXML, err := s.builder.Build(buildCtx)
	if err != nil {
		return fatalErr(fmt.Sprintf("erro ao montar XML: %v", err), err)
	}
	signedXML, err := s.signer.Sign(rawXML, cert, "infNFe")
	if err != nil {
		return fatalErr(fmt.Sprintf("erro ao assinar XML: %v", err), err)
	}
	sale.XMLAssinado = string(signedXML)
	if err := s.sales.Update(ctx, sale); err != nil {
		return transientErr(fmt.Sprintf("erro ao persistir XML assinado: %v", err), err)
	}

	res, err := s.client.Authorize(ctx, signedXML)
	if err != nil {
		return fatalErr(fmt.Sprintf("erro ao montar envio: %v", err), err)
	}
	switch {
	case res.Transient:
		return transientErr(res.Motivo, nil)
	case res.Pending:
		sale.Status = entity.SaleStatusAuthorizedPending
		sale.Recibo = res.Recibo
		if err := s.sales.Update(ctx, sale); err != nil {
			return transientErr(fmt.Sprintf("erro ao persistir recibo: %v", err), err)
		}
		s.log.Info().Str("sale_id", saleID).Str("recibo", res.Recibo).
			Msg("lote recebido pela SEFAZ")
		return s.pollReceipt(ctx, sale)
	default:
		return businessErr(fmt.Sprintf("lote rejeitado [cStat %s]: %s", res.CStat, res.Motivo))
	}
}

// pollReceipt consulta o recibo até obter resultado definitivo ou esgotar o
// limite de consultas desta tentativa. O recibo fica persistido; a próxima
// tentativa retoma daqui sem retransmitir o lote.
func (s *TransmitService) pollReceipt(ctx context.Context, sale *entity.Sale) error {
	for i := 0; i < s.maxPolls; i++ {
		if i > 0 {
			s.clock.Sleep(s.pollInterval)
		}
		res, err := s.client.QueryReceipt(ctx, sale.Recibo)
		if err != nil {
			return fatalErr(fmt.Sprintf("erro ao consultar recibo: %v", err), err)
		}
		switch {
		case res.Transient:
			return transientErr(res.Motivo, nil)
		case res.Pending:
			continue
		case res.Success:
			return s.finalizeAuthorized(ctx, sale, res)
		default:
			// Rejeição definitiva do documento: limpa o recibo para que a
			// próxima tentativa retransmita em vez de reconsultar.
			sale.Status = entity.SaleStatusAuthorizedPending
			sale.Recibo = ""
			if uerr := s.sales.Update(ctx, sale); uerr != nil {
				s.log.Error().Err(uerr).Str("sale_id", sale.ID).
					Msg("falha ao limpar recibo após rejeição")
			}
			return businessErr(fmt.Sprintf("nota rejeitada [cStat %s]: %s", res.CStat, res.Motivo))
		}
	}
	return transientErr("lote ainda em processamento após o limite de consultas", nil)
}

func (s *TransmitService) finalizeAuthorized(ctx context.Context, sale *entity.Sale, res *sefaz.Result) error {
	if res.ChaveAcesso != "" {
		sale.ChaveAcesso = res.ChaveAcesso
	}

	now := s.clock.Now()
	sale.Status = entity.SaleStatusAuthorized
	sale.Protocolo = res.Protocolo
	sale.ErrorMessage = ""
	sale.AuthorizedAt = &now

	// A autorização já aconteceu na SEFAZ; falha local ao montar o QR (ex.:
	// CSC ausente) não pode derrubar a persistência do protocolo, senão a
	// retransmissão seguinte seria rejeitada por duplicidade.
	qrURL, qrErr := s.qr.Generate(sale.ChaveAcesso)
	if qrErr == nil {
		sale.QRCode = qrURL
	}

	if err := s.sales.Update(ctx, sale); err != nil {
		return transientErr(fmt.Sprintf("erro ao persistir autorização: %v", err), err)
	}
	if qrErr != nil {
		s.log.Error().Err(qrErr).Str("sale_id", sale.ID).
			Msg("venda autorizada sem QR code")
	}
	s.log.Info().Str("sale_id", sale.ID).Str("chave", sale.ChaveAcesso).
		Str("protocolo", res.Protocolo).Msg("NFC-e autorizada")
	return nil
}

// ensureChave reaproveita a chave de uma tentativa anterior; retransmissão
// com chave diferente criaria um documento duplicado na SEFAZ.
func (s *TransmitService) ensureChave(sale *entity.Sale, company *entity.CompanyConfig) *TransmitError {
	if sale.ChaveAcesso != "" && domainnfe.Validate(sale.ChaveAcesso) == nil {
		return nil
	}
	chave, err := s.chaveGen.Generate(&domainnfe.ChaveParams{
		UF:             company.UF,
		CNPJ:           company.CNPJ,
		Emissao:        s.clock.Now(),
		Serie:          sale.Serie,
		Numero:         sale.Numero,
		TipoEmissao:    "1",
		CodigoNumerico: randomCNF(),
	})
	if err != nil {
		return fatalErr(fmt.Sprintf("erro ao gerar chave de acesso: %v", err), err)
	}
	sale.ChaveAcesso = chave
	return nil
}

func (s *TransmitService) buildContext(ctx context.Context, sale *entity.Sale, company *entity.CompanyConfig) (*sefaz.NotaBuildContext, *TransmitError) {
	var customer *entity.Customer
	if sale.CustomerID != "" {
		c, err := s.customers.GetByID(ctx, sale.CustomerID)
		if err != nil {
			return nil, transientErr(fmt.Sprintf("erro ao carregar cliente: %v", err), err)
		}
		customer = c // nil é aceitável: vira consumidor não identificado
	}

	items := make([]sefaz.ItemForXML, 0, len(sale.Items))
	for _, it := range sale.Items {
		product, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, transientErr(fmt.Sprintf("erro ao carregar produto %s: %v", it.ProductID, err), err)
		}
		if product == nil {
			return nil, fatalErr(fmt.Sprintf("produto %s da venda não existe", it.ProductID), domain.ErrNotFound)
		}
		items = append(items, sefaz.ItemForXML{
			Item:      it,
			Codigo:    product.Codigo,
			Descricao: product.Nome,
			NCM:       product.NCM,
			Unidade:   product.Unidade,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}

	return &sefaz.NotaBuildContext{
		Sale:           sale,
		Company:        company,
		Customer:       customer,
		Items:          items,
		Chave:          sale.ChaveAcesso,
		CodigoNumerico: sale.ChaveAcesso[35:43],
		Emissao:        s.clock.Now(),
	}, nil
}

// loadSigningCert busca o certificado padrão e abre o bundle PKCS#12. Todos
// os caminhos de falha aqui são de configuração, nunca transientes.
func (s *TransmitService) loadSigningCert(ctx context.Context, companyConfigID string) (tls.Certificate, *TransmitError) {
	certRec, err := s.certs.GetDefault(ctx, companyConfigID)
	if err != nil {
		return tls.Certificate{}, transientErr(fmt.Sprintf("erro ao consultar certificado: %v", err), err)
	}
	if certRec == nil {
		return tls.Certificate{}, fatalErr(domain.ErrCertificadoNaoConfigurado.Error(), domain.ErrCertificadoNaoConfigurado)
	}
	if certRec.Expired(s.clock.Now()) {
		return tls.Certificate{}, fatalErr("certificado digital expirado", domain.ErrCertificadoInvalido)
	}
	cert, err := s.loadCert(certRec.Path, certRec.Password)
	if err != nil {
		return tls.Certificate{}, fatalErr(fmt.Sprintf("erro ao abrir certificado: %v", err), err)
	}
	return cert, nil
}

// randomCNF sorteia o código numérico de 8 dígitos que compõe a chave.
func randomCNF() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return fmt.Sprintf("%08d", time.Now().UnixNano()%100000000)
	}
	return fmt.Sprintf("%08d", n.Int64())
}
