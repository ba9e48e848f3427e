package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz"
	"github.com/pdvlite/nfce-api/pkg/logger"
)

// sweepInterval período da varredura de inutilizações pendentes.
const sweepInterval = time.Minute

// sweepBatch máximo de pendências processadas por varredura.
const sweepBatch = 20

// InutilizacaoService registra e homologa inutilizações de faixa de
// numeração. A retentativa é dirigida por dados: cada falha transiente grava
// retry_count e next_retry_at na própria linha, e a varredura periódica
// recolhe o que venceu.
type InutilizacaoService struct {
	inuts    repository.InutilizacaoRepository
	company  repository.CompanyConfigRepository
	certs    repository.CertificateRepository
	client   SefazClient
	loadCert CertLoader
	clock    clockwork.Clock
	log      *logger.Logger
}

func NewInutilizacaoService(
	inuts repository.InutilizacaoRepository,
	company repository.CompanyConfigRepository,
	certs repository.CertificateRepository,
	client SefazClient,
	loadCert CertLoader,
	clock clockwork.Clock,
	log *logger.Logger,
) *InutilizacaoService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InutilizacaoService{
		inuts:    inuts,
		company:  company,
		certs:    certs,
		client:   client,
		loadCert: loadCert,
		clock:    clock,
		log:      log,
	}
}

// InutilizacaoRequest entrada do registro de uma nova faixa.
type InutilizacaoRequest struct {
	Serie         int
	NumeroInicial int64
	NumeroFinal   int64
	Justificativa string
}

// Request valida, persiste como pending e tenta homologar imediatamente.
// Se a primeira tentativa falhar de forma transiente, a varredura assume.
func (s *InutilizacaoService) Request(ctx context.Context, req InutilizacaoRequest) (*entity.Inutilizacao, error) {
	if req.NumeroInicial < 1 || req.NumeroFinal < req.NumeroInicial {
		return nil, fmt.Errorf("%w: faixa %d..%d inválida", domain.ErrInvalidInput, req.NumeroInicial, req.NumeroFinal)
	}
	if len(req.Justificativa) < 15 || len(req.Justificativa) > 255 {
		return nil, fmt.Errorf("%w: justificativa deve ter entre 15 e 255 caracteres", domain.ErrInvalidInput)
	}

	now := s.clock.Now()
	inut := &entity.Inutilizacao{
		ID:            uuid.NewString(),
		Serie:         req.Serie,
		NumeroInicial: req.NumeroInicial,
		NumeroFinal:   req.NumeroFinal,
		Justificativa: req.Justificativa,
		Status:        entity.InutStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.inuts.Create(ctx, inut); err != nil {
		return nil, err
	}

	s.attempt(ctx, inut)
	return inut, nil
}

// RunSweep roda a varredura periódica até o contexto encerrar. Deve viver em
// goroutine própria, disparada no boot.
func (s *InutilizacaoService) RunSweep(ctx context.Context) {
	ticker := s.clock.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

// Sweep processa um lote de pendências vencidas. Exportado para testes e
// para disparo manual.
func (s *InutilizacaoService) Sweep(ctx context.Context) {
	pending, err := s.inuts.ListPendingRetries(ctx, s.clock.Now(), sweepBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("varredura de inutilizações falhou")
		return
	}
	for _, inut := range pending {
		s.attempt(ctx, inut)
	}
}

// attempt uma tentativa de homologação. O resultado decide o destino:
// homologada, rejeitada (terminal) ou pendente com retry agendado.
func (s *InutilizacaoService) attempt(ctx context.Context, inut *entity.Inutilizacao) {
	res, terr := s.submit(ctx, inut)
	now := s.clock.Now()

	switch {
	case terr != nil && terr.Kind == FailureFatal:
		inut.Status = entity.InutStatusError
		inut.Motivo = terr.Error()
	case terr != nil:
		inut.Motivo = terr.Error()
		inut.ScheduleRetry(now)
		if inut.RetryCount >= entity.MaxInutRetries {
			inut.Status = entity.InutStatusError
		}
	case res.Success:
		inut.Status = entity.InutStatusAuthorized
		inut.Protocolo = res.Protocolo
		inut.CStat = res.CStat
		inut.Motivo = res.Motivo
		s.log.Info().Str("inut_id", inut.ID).Str("protocolo", res.Protocolo).
			Msg("inutilização homologada")
	case res.Transient:
		inut.Motivo = res.Motivo
		inut.ScheduleRetry(now)
		if inut.RetryCount >= entity.MaxInutRetries {
			inut.Status = entity.InutStatusError
		}
	default:
		// Rejeição da SEFAZ é terminal: reenviar a mesma faixa devolve o
		// mesmo cStat.
		inut.Status = entity.InutStatusRejected
		inut.CStat = res.CStat
		inut.Motivo = res.Motivo
		s.log.Warn().Str("inut_id", inut.ID).Str("cstat", res.CStat).
			Str("motivo", res.Motivo).Msg("inutilização rejeitada")
	}

	inut.UpdatedAt = now
	if err := s.inuts.Update(ctx, inut); err != nil {
		s.log.Error().Err(err).Str("inut_id", inut.ID).
			Msg("falha ao persistir resultado da inutilização")
	}
}

func (s *InutilizacaoService) submit(ctx context.Context, inut *entity.Inutilizacao) (*sefaz.Result, *TransmitError) {
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, fatalErr(fmt.Sprintf("emitente não configurado: %v", err), err)
	}
	certRec, err := s.certs.GetDefault(ctx, company.ID)
	if err != nil {
		return nil, transientErr(fmt.Sprintf("erro ao consultar certificado: %v", err), err)
	}
	if certRec == nil {
		return nil, fatalErr(domain.ErrCertificadoNaoConfigurado.Error(), domain.ErrCertificadoNaoConfigurado)
	}
	cert, err := s.loadCert(certRec.Path, certRec.Password)
	if err != nil {
		return nil, fatalErr(fmt.Sprintf("erro ao abrir certificado: %v", err), err)
	}

	res, err := s.client.Inutilizar(ctx, cert, sefaz.InutilizacaoParams{
		CNPJ:          company.CNPJ,
		UF:            company.UF,
		Ambiente:      company.Ambiente,
		Ano:           s.clock.Now().Year(),
		Serie:         inut.Serie,
		NumeroInicial: inut.NumeroInicial,
		NumeroFinal:   inut.NumeroFinal,
		Justificativa: inut.Justificativa,
	})
	if err != nil {
		return nil, fatalErr(fmt.Sprintf("erro ao montar inutilização: %v", err), err)
	}
	return res, nil
}
