package fiscal

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz"
)

func authorizedSale() *entity.Sale {
	s := testDraftSale()
	s.Status = entity.SaleStatusAuthorized
	s.ChaveAcesso = testChave
	s.Protocolo = "135240000012345"
	return s
}

func newCancelFixture(sale *entity.Sale, client *fakeSefaz) (*CancelService, *memSales) {
	sales := newMemSales(sale)
	svc := NewCancelService(
		sales,
		&memCompany{cfg: testCompanyConfig()},
		&memCerts{cert: testValidCertificate(clockwork.NewFakeClock().Now())},
		client,
		stubCertLoader,
		clockwork.NewFakeClock(),
		testLogger(),
	)
	return svc, sales
}

func TestCancel_EventoHomologado(t *testing.T) {
	client := &fakeSefaz{
		cancelQueue: []*sefaz.Result{{
			Success:   true,
			CStat:     sefaz.CStatEventoRegistrado,
			Motivo:    "Evento registrado e vinculado a NF-e",
			Protocolo: "135240000099999",
		}},
	}
	svc, sales := newCancelFixture(authorizedSale(), client)

	sale, err := svc.Cancel(context.Background(), "sale-1", "cliente desistiu da compra no caixa")
	require.NoError(t, err)

	assert.Equal(t, entity.SaleStatusCanceled, sale.Status)
	assert.Equal(t, "135240000099999", sale.CancelProtocol)
	// Chave e protocolo de autorização permanecem intactos para auditoria.
	assert.Equal(t, testChave, sale.ChaveAcesso)
	assert.Equal(t, "135240000012345", sale.Protocolo)

	persisted := sales.get("sale-1")
	assert.Equal(t, entity.SaleStatusCanceled, persisted.Status)
	assert.Equal(t, "135240000099999", persisted.CancelProtocol)
}

func TestCancel_SoVendaAutorizada(t *testing.T) {
	for _, status := range []string{
		entity.SaleStatusDraft,
		entity.SaleStatusProcessing,
		entity.SaleStatusError,
		entity.SaleStatusCanceled,
	} {
		t.Run(status, func(t *testing.T) {
			sale := authorizedSale()
			sale.Status = status
			client := &fakeSefaz{}
			svc, sales := newCancelFixture(sale, client)

			_, err := svc.Cancel(context.Background(), "sale-1", "cliente desistiu da compra no caixa")
			require.ErrorIs(t, err, domain.ErrTransicaoInvalida)

			_, _, cancel, _ := client.calls()
			assert.Zero(t, cancel, "SEFAZ não deve ser chamada")
			assert.Equal(t, status, sales.get("sale-1").Status)
		})
	}
}

func TestCancel_VendaInexistente(t *testing.T) {
	svc, _ := newCancelFixture(authorizedSale(), &fakeSefaz{})

	_, err := svc.Cancel(context.Background(), "sale-999", "cliente desistiu da compra no caixa")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancel_RejeicaoNaoAlteraVenda(t *testing.T) {
	client := &fakeSefaz{
		cancelQueue: []*sefaz.Result{{
			CStat:  "573",
			Motivo: "Rejeicao: Duplicidade de evento",
		}},
	}
	svc, sales := newCancelFixture(authorizedSale(), client)

	_, err := svc.Cancel(context.Background(), "sale-1", "cliente desistiu da compra no caixa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "573")
	assert.Contains(t, err.Error(), "Duplicidade")

	persisted := sales.get("sale-1")
	assert.Equal(t, entity.SaleStatusAuthorized, persisted.Status)
	assert.Empty(t, persisted.CancelProtocol)
}

func TestCancel_SemCertificadoConfigurado(t *testing.T) {
	client := &fakeSefaz{}
	sales := newMemSales(authorizedSale())
	svc := NewCancelService(
		sales,
		&memCompany{cfg: testCompanyConfig()},
		&memCerts{cert: nil},
		client,
		stubCertLoader,
		clockwork.NewFakeClock(),
		testLogger(),
	)

	_, err := svc.Cancel(context.Background(), "sale-1", "cliente desistiu da compra no caixa")
	assert.ErrorIs(t, err, domain.ErrCertificadoNaoConfigurado)

	_, _, cancel, _ := client.calls()
	assert.Zero(t, cancel)
}
