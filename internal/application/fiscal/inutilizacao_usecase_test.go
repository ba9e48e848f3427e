package fiscal

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz"
)

func newInutFixture(client *fakeSefaz) (*InutilizacaoService, *memInuts, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClock()
	inuts := newMemInuts()
	svc := NewInutilizacaoService(
		inuts,
		&memCompany{cfg: testCompanyConfig()},
		&memCerts{cert: testValidCertificate(fc.Now())},
		client,
		stubCertLoader,
		fc,
		testLogger(),
	)
	return svc, inuts, fc
}

func validInutRequest() InutilizacaoRequest {
	return InutilizacaoRequest{
		Serie:         1,
		NumeroInicial: 50,
		NumeroFinal:   55,
		Justificativa: "falha na emissao pulou a faixa de numeracao",
	}
}

func TestInutilizacao_ValidacaoDaEntrada(t *testing.T) {
	svc, _, _ := newInutFixture(&fakeSefaz{})

	cases := []struct {
		name string
		mut  func(*InutilizacaoRequest)
	}{
		{"numero inicial zero", func(r *InutilizacaoRequest) { r.NumeroInicial = 0 }},
		{"faixa invertida", func(r *InutilizacaoRequest) { r.NumeroFinal = r.NumeroInicial - 1 }},
		{"justificativa curta", func(r *InutilizacaoRequest) { r.Justificativa = "muito curta" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validInutRequest()
			tc.mut(&req)
			_, err := svc.Request(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestInutilizacao_HomologadaNaPrimeiraTentativa(t *testing.T) {
	client := &fakeSefaz{
		inutQueue: []*sefaz.Result{{
			Success:   true,
			CStat:     sefaz.CStatInutilizacaoHomologada,
			Motivo:    "Inutilizacao de numero homologado",
			Protocolo: "135240000054321",
		}},
	}
	svc, inuts, _ := newInutFixture(client)

	inut, err := svc.Request(context.Background(), validInutRequest())
	require.NoError(t, err)

	persisted, err := inuts.GetByID(context.Background(), inut.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InutStatusAuthorized, persisted.Status)
	assert.Equal(t, "135240000054321", persisted.Protocolo)
	assert.Equal(t, "102", persisted.CStat)
	assert.Zero(t, persisted.RetryCount)
	assert.Nil(t, persisted.NextRetryAt)
}

func TestInutilizacao_FalhaTransienteAgendaRetentativa(t *testing.T) {
	client := &fakeSefaz{
		inutQueue: []*sefaz.Result{{Transient: true, Motivo: "falha de comunicação"}},
	}
	svc, inuts, fc := newInutFixture(client)

	inut, err := svc.Request(context.Background(), validInutRequest())
	require.NoError(t, err)

	persisted, _ := inuts.GetByID(context.Background(), inut.ID)
	assert.Equal(t, entity.InutStatusPending, persisted.Status)
	assert.Equal(t, 1, persisted.RetryCount)
	require.NotNil(t, persisted.NextRetryAt)
	assert.Equal(t, fc.Now().Add(2*time.Minute), *persisted.NextRetryAt)
}

func TestInutilizacao_ProgressaoExponencialDaJanela(t *testing.T) {
	client := &fakeSefaz{
		inutQueue: []*sefaz.Result{{Transient: true, Motivo: "timeout"}},
	}
	svc, inuts, fc := newInutFixture(client)

	inut, err := svc.Request(context.Background(), validInutRequest())
	require.NoError(t, err)

	// Primeira falha: 2^1 min. Cada varredura seguinte dobra a janela.
	windows := []time.Duration{4 * time.Minute, 8 * time.Minute, 16 * time.Minute}
	for i, window := range windows {
		persisted, _ := inuts.GetByID(context.Background(), inut.ID)
		fc.Advance(persisted.NextRetryAt.Sub(fc.Now()))
		svc.Sweep(context.Background())

		persisted, _ = inuts.GetByID(context.Background(), inut.ID)
		require.Equal(t, i+2, persisted.RetryCount)
		assert.Equal(t, fc.Now().Add(window), *persisted.NextRetryAt)
	}
}

func TestInutilizacao_EsgotarRetentativasTerminaEmErro(t *testing.T) {
	client := &fakeSefaz{
		inutQueue: []*sefaz.Result{{Transient: true, Motivo: "SEFAZ indisponivel"}},
	}
	svc, inuts, fc := newInutFixture(client)

	inut, err := svc.Request(context.Background(), validInutRequest())
	require.NoError(t, err)

	for i := 0; i < entity.MaxInutRetries; i++ {
		persisted, _ := inuts.GetByID(context.Background(), inut.ID)
		if persisted.NextRetryAt != nil {
			fc.Advance(persisted.NextRetryAt.Sub(fc.Now()))
		}
		svc.Sweep(context.Background())
	}

	persisted, _ := inuts.GetByID(context.Background(), inut.ID)
	assert.Equal(t, entity.InutStatusError, persisted.Status)
	assert.Equal(t, entity.MaxInutRetries, persisted.RetryCount)
	assert.Contains(t, persisted.Motivo, "SEFAZ indisponivel")

	// Esgotada, a varredura não a seleciona mais.
	_, _, _, before := client.calls()
	fc.Advance(time.Hour)
	svc.Sweep(context.Background())
	_, _, _, after := client.calls()
	assert.Equal(t, before, after)
}

func TestInutilizacao_RejeicaoETerminal(t *testing.T) {
	client := &fakeSefaz{
		inutQueue: []*sefaz.Result{{
			CStat:  "241",
			Motivo: "Rejeicao: Um numero da faixa ja foi utilizado",
		}},
	}
	svc, inuts, fc := newInutFixture(client)

	inut, err := svc.Request(context.Background(), validInutRequest())
	require.NoError(t, err)

	persisted, _ := inuts.GetByID(context.Background(), inut.ID)
	assert.Equal(t, entity.InutStatusRejected, persisted.Status)
	assert.Equal(t, "241", persisted.CStat)
	assert.Nil(t, persisted.NextRetryAt)

	// Rejeitada não volta para a fila.
	fc.Advance(time.Hour)
	svc.Sweep(context.Background())
	_, _, _, inutCalls := client.calls()
	assert.Equal(t, 1, inutCalls)
}

func TestInutilizacao_VarreduraRespeitaJanela(t *testing.T) {
	client := &fakeSefaz{
		inutQueue: []*sefaz.Result{{Transient: true, Motivo: "timeout"}},
	}
	svc, inuts, fc := newInutFixture(client)

	inut, err := svc.Request(context.Background(), validInutRequest())
	require.NoError(t, err)

	// Janela ainda não venceu: varredura não dispara nada.
	fc.Advance(time.Minute)
	svc.Sweep(context.Background())
	_, _, _, inutCalls := client.calls()
	assert.Equal(t, 1, inutCalls)

	// Venceu: uma nova tentativa acontece.
	persisted, _ := inuts.GetByID(context.Background(), inut.ID)
	fc.Advance(persisted.NextRetryAt.Sub(fc.Now()))
	svc.Sweep(context.Background())
	_, _, _, inutCalls = client.calls()
	assert.Equal(t, 2, inutCalls)
}

func TestInutilizacao_SemCertificadoEFatal(t *testing.T) {
	client := &fakeSefaz{}
	fc := clockwork.NewFakeClock()
	inuts := newMemInuts()
	svc := NewInutilizacaoService(
		inuts,
		&memCompany{cfg: testCompanyConfig()},
		&memCerts{cert: nil},
		client,
		stubCertLoader,
		fc,
		testLogger(),
	)

	inut, err := svc.Request(context.Background(), validInutRequest())
	require.NoError(t, err)

	persisted, _ := inuts.GetByID(context.Background(), inut.ID)
	assert.Equal(t, entity.InutStatusError, persisted.Status)
	assert.Contains(t, persisted.Motivo, "certificado")
	assert.Zero(t, persisted.RetryCount)

	_, _, _, inutCalls := client.calls()
	assert.Zero(t, inutCalls)
}
