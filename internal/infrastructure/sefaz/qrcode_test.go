package sefaz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdvlite/nfce-api/pkg/nfe"
)

const testChaveQR = "35240712345678000195650010000000421123456788"

func TestQRCode_VetorExato(t *testing.T) {
	svc := NewQRCodeService(nfe.AmbienteHomologacao, "000001", "ABCDEF1234567890")

	url, err := svc.Generate(testChaveQR)
	require.NoError(t, err)

	// Hash SHA-1 calculado de forma independente sobre
	// "chave|2|2|000001" + token.
	assert.Equal(t,
		"https://www.homologacao.nfce.fazenda.sp.gov.br/qrcode?p="+
			testChaveQR+"|2|2|000001|1598BBB241A5A7D13196FF1B2D6C4053DB70BA6E",
		url)
}

func TestQRCode_TokenNuncaApareceNaURL(t *testing.T) {
	token := "SEGREDO-DO-CSC"
	svc := NewQRCodeService(nfe.AmbienteHomologacao, "000001", token)

	url, err := svc.Generate(testChaveQR)
	require.NoError(t, err)
	assert.NotContains(t, url, token)
}

func TestQRCode_HostPorAmbiente(t *testing.T) {
	prod := NewQRCodeService(nfe.AmbienteProducao, "000001", "tok")
	url, err := prod.Generate(testChaveQR)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://www.nfce.fazenda.sp.gov.br/qrcode?p="))
}

func TestQRCode_ChaveInvalida(t *testing.T) {
	svc := NewQRCodeService(nfe.AmbienteHomologacao, "000001", "tok")
	_, err := svc.Generate("123")
	assert.Error(t, err)
}

func TestQRCode_CSCNaoConfigurado(t *testing.T) {
	svc := NewQRCodeService(nfe.AmbienteHomologacao, "", "")
	_, err := svc.Generate(testChaveQR)
	assert.Error(t, err)
}
