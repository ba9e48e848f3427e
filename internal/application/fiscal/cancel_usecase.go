package fiscal

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
	"github.com/pdvlite/nfce-api/pkg/logger"
)

// CancelService registra o evento de cancelamento de uma NFC-e autorizada.
// Síncrono: o caixa espera a resposta da SEFAZ na própria chamada.
type CancelService struct {
	sales    repository.SaleRepository
	company  repository.CompanyConfigRepository
	certs    repository.CertificateRepository
	client   SefazClient
	loadCert CertLoader
	clock    clockwork.Clock
	log      *logger.Logger
}

func NewCancelService(
	sales repository.SaleRepository,
	company repository.CompanyConfigRepository,
	certs repository.CertificateRepository,
	client SefazClient,
	loadCert CertLoader,
	clock clockwork.Clock,
	log *logger.Logger,
) *CancelService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CancelService{
		sales:    sales,
		company:  company,
		certs:    certs,
		client:   client,
		loadCert: loadCert,
		clock:    clock,
		log:      log,
	}
}

// Cancel envia o evento 110111 para a venda. Só vendas authorized podem ser
// canceladas; o sucesso troca o status para canceled e grava o protocolo do
// evento sem tocar na chave nem no protocolo de autorização.
func (s *CancelService) Cancel(ctx context.Context, saleID, justificativa string) (*entity.Sale, error) {
	if len(justificativa) < 15 || len(justificativa) > 255 {
		return nil, fmt.Errorf("%w: justificativa deve ter entre 15 e 255 caracteres", domain.ErrInvalidInput)
	}

	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar venda: %w", err)
	}
	if sale == nil {
		return nil, domain.ErrNotFound
	}
	if sale.Status != entity.SaleStatusAuthorized {
		return nil, fmt.Errorf("%w: cancelamento exige venda autorizada, status atual %q",
			domain.ErrTransicaoInvalida, sale.Status)
	}

	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, err
	}
	certRec, err := s.certs.GetDefault(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	if certRec == nil {
		return nil, domain.ErrCertificadoNaoConfigurado
	}
	cert, err := s.loadCert(certRec.Path, certRec.Password)
	if err != nil {
		return nil, err
	}

	res, err := s.client.Cancel(ctx, cert, sale.ChaveAcesso, sale.Protocolo, justificativa)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("cancelamento não homologado [cStat %s]: %s", res.CStat, res.Motivo)
	}

	sale.Status = entity.SaleStatusCanceled
	sale.CancelProtocol = res.Protocolo
	if err := s.sales.Update(ctx, sale); err != nil {
		// Evento registrado na SEFAZ mas não persistido localmente: estado
		// divergente que exige atenção imediata.
		s.log.Error().Err(err).Str("sale_id", saleID).Str("protocolo", res.Protocolo).
			Msg("cancelamento homologado mas não persistido")
		return nil, fmt.Errorf("cancelamento homologado mas não persistido: %w", err)
	}

	s.log.Info().Str("sale_id", saleID).Str("protocolo", res.Protocolo).
		Msg("NFC-e cancelada")
	return sale, nil
}
