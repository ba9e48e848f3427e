package fiscal

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
	"github.com/pdvlite/nfce-api/pkg/logger"
)

// transmitTries total de tentativas de transmissão por agendamento.
const transmitTries = 5

// transmitMaxExceptions teto de erros fora do contrato do serviço (qualquer
// coisa que não seja um *TransmitError) num mesmo agendamento. Rejeições da
// SEFAZ e falhas transientes consomem tentativas normalmente; erros de forma
// desconhecida repetidos indicam problema sistêmico, não transiente.
const transmitMaxExceptions = 3

// transmitBackoff espera antes de cada retentativa, indexada pelo número da
// retentativa. Tabela literal, não fórmula: a progressão é dado do sistema.
var transmitBackoff = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
	600 * time.Second,
}

// TransmitScheduler agenda e reexecuta o TransmitService. Uma venda por vez:
// agendamentos repetidos da mesma venda enquanto há um em andamento são
// descartados (o guard do job cobre o caso de corrida restante).
type TransmitScheduler struct {
	svc   *TransmitService
	sales repository.SaleRepository
	clock clockwork.Clock
	log   *logger.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

func NewTransmitScheduler(svc *TransmitService, sales repository.SaleRepository, clock clockwork.Clock, log *logger.Logger) *TransmitScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TransmitScheduler{
		svc:      svc,
		sales:    sales,
		clock:    clock,
		log:      log,
		inFlight: make(map[string]bool),
	}
}

// Enqueue dispara o ciclo de tentativas da venda em goroutine própria.
// Devolve false se a venda já tem um ciclo em andamento.
func (s *TransmitScheduler) Enqueue(saleID string) bool {
	s.mu.Lock()
	if s.inFlight[saleID] {
		s.mu.Unlock()
		s.log.Warn().Str("sale_id", saleID).Msg("transmissão já em andamento, agendamento descartado")
		return false
	}
	s.inFlight[saleID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, saleID)
			s.mu.Unlock()
		}()
		s.run(saleID)
	}()
	return true
}

// Wait bloqueia até todos os ciclos em andamento terminarem (shutdown).
func (s *TransmitScheduler) Wait() {
	s.wg.Wait()
}

// run executa até transmitTries tentativas, dormindo o backoff tabelado entre
// elas. Esgotadas as tentativas (ou atingido o teto de erros inesperados),
// grava o estado terminal error com a última mensagem.
func (s *TransmitScheduler) run(saleID string) {
	ctx := context.Background()
	exceptions := 0
	var lastMsg string

	for attempt := 0; attempt < transmitTries; attempt++ {
		if attempt > 0 {
			s.clock.Sleep(backoffFor(attempt - 1))
		}

		err := s.svc.Process(ctx, saleID)
		if err == nil {
			return
		}

		terr, ok := err.(*TransmitError)
		if !ok {
			exceptions++
			terr = transientErr(err.Error(), err)
		}
		lastMsg = terr.Error()

		s.log.Warn().Str("sale_id", saleID).Int("attempt", attempt+1).
			Str("kind", string(terr.Kind)).Str("motivo", lastMsg).
			Msg("tentativa de transmissão falhou")

		if terr.Kind == FailureFatal {
			break
		}
		if exceptions >= transmitMaxExceptions {
			s.log.Error().Str("sale_id", saleID).Int("exceptions", exceptions).
				Msg("teto de erros inesperados atingido, abortando retentativas")
			break
		}
	}

	s.failed(ctx, saleID, lastMsg)
}

// failed é o backstop terminal: persiste status error com a última mensagem.
// A venda fica recuperável por reenvio manual (error é estado retransmissível).
func (s *TransmitScheduler) failed(ctx context.Context, saleID, lastMsg string) {
	if err := s.sales.UpdateStatus(ctx, saleID, entity.SaleStatusError, lastMsg); err != nil {
		s.log.Error().Err(err).Str("sale_id", saleID).
			Msg("falha ao persistir estado de erro da venda")
		return
	}
	s.log.Error().Str("sale_id", saleID).Str("motivo", lastMsg).
		Msg("transmissão esgotou as tentativas")
}

func backoffFor(retry int) time.Duration {
	if retry >= len(transmitBackoff) {
		retry = len(transmitBackoff) - 1
	}
	return transmitBackoff[retry]
}
