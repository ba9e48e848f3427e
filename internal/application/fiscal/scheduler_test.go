package fiscal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz"
)

func newSchedulerFixture(t *testing.T, client *fakeSefaz) (*TransmitScheduler, *jobFixture) {
	t.Helper()
	f := newJobFixture(t, testDraftSale(), client)
	sched := NewTransmitScheduler(f.svc, f.sales, f.clock, testLogger())
	return sched, f
}

func TestScheduler_EsquemaDeBackoffExato(t *testing.T) {
	client := &fakeSefaz{
		authorizeQueue: []*sefaz.Result{{Transient: true, Motivo: "SEFAZ fora do ar"}},
	}
	sched, f := newSchedulerFixture(t, client)

	require.True(t, sched.Enqueue("sale-1"))

	// Quatro esperas entre as cinco tentativas, na progressão tabelada.
	for _, delay := range []time.Duration{
		30 * time.Second, 60 * time.Second, 120 * time.Second, 300 * time.Second,
	} {
		f.clock.BlockUntil(1)
		f.clock.Advance(delay)
	}
	sched.Wait()

	authorize, _, _, _ := client.calls()
	assert.Equal(t, 5, authorize, "cinco tentativas antes do estado terminal")

	sale := f.sales.get("sale-1")
	assert.Equal(t, entity.SaleStatusError, sale.Status)
	assert.Contains(t, sale.ErrorMessage, "SEFAZ fora do ar")
}

func TestScheduler_SucessoNaSegundaTentativa(t *testing.T) {
	client := &fakeSefaz{
		authorizeQueue: []*sefaz.Result{
			{Transient: true, Motivo: "timeout"},
			{Pending: true, CStat: "103", Recibo: "351000012345678"},
		},
		receiptQueue: []*sefaz.Result{authorizedReceipt("")},
	}
	sched, f := newSchedulerFixture(t, client)

	require.True(t, sched.Enqueue("sale-1"))
	f.clock.BlockUntil(1)
	f.clock.Advance(30 * time.Second)
	sched.Wait()

	sale := f.sales.get("sale-1")
	assert.Equal(t, entity.SaleStatusAuthorized, sale.Status)
	assert.Empty(t, sale.ErrorMessage)
}

func TestScheduler_FalhaFatalNaoReagenda(t *testing.T) {
	client := &fakeSefaz{}
	sched, f := newSchedulerFixture(t, client)
	f.svc.certs = &memCerts{cert: nil} // certificado não configurado

	require.True(t, sched.Enqueue("sale-1"))
	sched.Wait()

	authorize, _, _, _ := client.calls()
	assert.Zero(t, authorize)

	sale := f.sales.get("sale-1")
	assert.Equal(t, entity.SaleStatusError, sale.Status)
	assert.Contains(t, sale.ErrorMessage, "certificado")
}

func TestScheduler_RejeicoesConsomemTentativasAteAutorizar(t *testing.T) {
	client := &fakeSefaz{
		authorizeQueue: []*sefaz.Result{
			{CStat: "539", Motivo: "Rejeicao: Duplicidade de NF-e"},
			{CStat: "539", Motivo: "Rejeicao: Duplicidade de NF-e"},
			{CStat: "539", Motivo: "Rejeicao: Duplicidade de NF-e"},
			{CStat: "539", Motivo: "Rejeicao: Duplicidade de NF-e"},
			{Pending: true, CStat: "103", Recibo: "351000012345678"},
		},
		receiptQueue: []*sefaz.Result{authorizedReceipt("")},
	}
	sched, f := newSchedulerFixture(t, client)

	require.True(t, sched.Enqueue("sale-1"))

	// Rejeição consome tentativa como falha transiente: quatro esperas
	// tabeladas e a quinta tentativa ainda acontece.
	for _, delay := range []time.Duration{
		30 * time.Second, 60 * time.Second, 120 * time.Second, 300 * time.Second,
	} {
		f.clock.BlockUntil(1)
		f.clock.Advance(delay)
	}
	sched.Wait()

	authorize, _, _, _ := client.calls()
	assert.Equal(t, 5, authorize, "quatro rejeições não encerram o ciclo")

	sale := f.sales.get("sale-1")
	assert.Equal(t, entity.SaleStatusAuthorized, sale.Status)
	assert.Empty(t, sale.ErrorMessage)
}

func TestScheduler_CincoRejeicoesTerminamEmErro(t *testing.T) {
	client := &fakeSefaz{
		authorizeQueue: []*sefaz.Result{
			{CStat: "225", Motivo: "Rejeicao: Falha no Schema XML"},
			{CStat: "225", Motivo: "Rejeicao: Falha no Schema XML"},
			{CStat: "225", Motivo: "Rejeicao: Falha no Schema XML"},
			{CStat: "225", Motivo: "Rejeicao: Falha no Schema XML"},
			{CStat: "225", Motivo: "Rejeicao: Falha no Schema XML na quinta"},
		},
	}
	sched, f := newSchedulerFixture(t, client)

	require.True(t, sched.Enqueue("sale-1"))
	for _, delay := range []time.Duration{
		30 * time.Second, 60 * time.Second, 120 * time.Second, 300 * time.Second,
	} {
		f.clock.BlockUntil(1)
		f.clock.Advance(delay)
	}
	sched.Wait()

	authorize, _, _, _ := client.calls()
	assert.Equal(t, 5, authorize)

	sale := f.sales.get("sale-1")
	assert.Equal(t, entity.SaleStatusError, sale.Status)
	assert.Contains(t, sale.ErrorMessage, "Falha no Schema XML na quinta")
}

func TestScheduler_EnqueueDuplicadoEDescartado(t *testing.T) {
	client := &fakeSefaz{
		authorizeQueue: []*sefaz.Result{{Transient: true, Motivo: "timeout"}},
	}
	sched, f := newSchedulerFixture(t, client)

	require.True(t, sched.Enqueue("sale-1"))
	f.clock.BlockUntil(1) // primeiro ciclo dormindo no backoff
	assert.False(t, sched.Enqueue("sale-1"), "segundo agendamento deve ser descartado")

	for _, delay := range []time.Duration{
		30 * time.Second, 60 * time.Second, 120 * time.Second, 300 * time.Second,
	} {
		f.clock.BlockUntil(1)
		f.clock.Advance(delay)
	}
	sched.Wait()

	authorize, _, _, _ := client.calls()
	assert.Equal(t, 5, authorize, "apenas um ciclo de tentativas")
}

func TestScheduler_ErroTerminalPreservaUltimaMensagem(t *testing.T) {
	client := &fakeSefaz{
		authorizeQueue: []*sefaz.Result{
			{Transient: true, Motivo: "primeira falha"},
			{Transient: true, Motivo: "segunda falha"},
			{Transient: true, Motivo: "terceira falha"},
			{Transient: true, Motivo: "quarta falha"},
			{Transient: true, Motivo: "quinta e ultima falha"},
		},
	}
	sched, f := newSchedulerFixture(t, client)

	require.True(t, sched.Enqueue("sale-1"))
	for _, delay := range []time.Duration{
		30 * time.Second, 60 * time.Second, 120 * time.Second, 300 * time.Second,
	} {
		f.clock.BlockUntil(1)
		f.clock.Advance(delay)
	}
	sched.Wait()

	sale := f.sales.get("sale-1")
	assert.Equal(t, entity.SaleStatusError, sale.Status)
	assert.Contains(t, sale.ErrorMessage, "quinta e ultima falha")
}
