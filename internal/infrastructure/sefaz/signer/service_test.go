package signer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdvlite/nfce-api/internal/domain"
)

func newTestCertificate(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "EMPRESA TESTE LTDA:12345678000195"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}
}

const notaSemAssinatura = `<NFe xmlns="http://www.portalfiscal.inf.br/nfe">` +
	`<infNFe Id="NFe35240712345678000195650010000000421123456788" versao="4.00">` +
	`<ide><cUF>35</cUF><mod>65</mod></ide>` +
	`<emit><CNPJ>12345678000195</CNPJ></emit>` +
	`</infNFe></NFe>`

func TestSign_InjetaSignatureComoIrmaoDoInfNFe(t *testing.T) {
	svc := NewDigitalSignatureService()
	cert := newTestCertificate(t)

	signed, err := svc.Sign([]byte(notaSemAssinatura), cert, "infNFe")
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))

	root := doc.Root()
	require.NotNil(t, root)
	children := root.ChildElements()
	require.Len(t, children, 2)
	assert.Equal(t, "infNFe", children[0].Tag)
	assert.Equal(t, "Signature", children[1].Tag)

	ref := doc.FindElement("//Signature/SignedInfo/Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#NFe35240712345678000195650010000000421123456788", ref.SelectAttrValue("URI", ""))

	assert.Equal(t, AlgC14N,
		doc.FindElement("//CanonicalizationMethod").SelectAttrValue("Algorithm", ""))
	assert.Equal(t, AlgRSASHA1,
		doc.FindElement("//SignatureMethod").SelectAttrValue("Algorithm", ""))
	assert.Equal(t, AlgSHA1,
		doc.FindElement("//DigestMethod").SelectAttrValue("Algorithm", ""))
	assert.NotNil(t, doc.FindElement("//KeyInfo/X509Data/X509Certificate"))
}

func TestSign_RoundTripVerifica(t *testing.T) {
	svc := NewDigitalSignatureService()
	cert := newTestCertificate(t)

	signed, err := svc.Sign([]byte(notaSemAssinatura), cert, "infNFe")
	require.NoError(t, err)

	assert.NoError(t, svc.Verify(signed, "infNFe"))
}

func TestVerify_DetectaConteudoAdulterado(t *testing.T) {
	svc := NewDigitalSignatureService()
	cert := newTestCertificate(t)

	signed, err := svc.Sign([]byte(notaSemAssinatura), cert, "infNFe")
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	doc.FindElement("//CNPJ").SetText("99999999000199")
	tampered, err := doc.WriteToBytes()
	require.NoError(t, err)

	err = svc.Verify(tampered, "infNFe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DigestValue")
}

func TestSign_ElementoSemId(t *testing.T) {
	svc := NewDigitalSignatureService()
	cert := newTestCertificate(t)

	_, err := svc.Sign([]byte(`<NFe><infNFe versao="4.00"/></NFe>`), cert, "infNFe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sem atributo Id")
}

func TestLoadFromP12_CaminhoVazio(t *testing.T) {
	_, err := LoadFromP12("", "senha")
	assert.ErrorIs(t, err, domain.ErrCertificadoNaoConfigurado)
}

func TestLoadFromP12_ArquivoInexistente(t *testing.T) {
	_, err := LoadFromP12(filepath.Join(t.TempDir(), "nao-existe.pfx"), "senha")
	assert.ErrorIs(t, err, domain.ErrCertificadoNaoEncontrado)
}

func TestLoadFromP12_ArquivoCorrompido(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lixo.pfx")
	require.NoError(t, os.WriteFile(path, []byte("isso não é um pkcs12"), 0o600))

	_, err := LoadFromP12(path, "senha")
	assert.ErrorIs(t, err, domain.ErrCertificadoInvalido)
}

func TestInfo_ExtraiMetadados(t *testing.T) {
	cert := newTestCertificate(t)

	info, err := Info(cert)
	require.NoError(t, err)
	assert.Contains(t, info.Subject, "EMPRESA TESTE LTDA")
	assert.False(t, info.Expired(time.Now()))
	assert.True(t, info.Expired(time.Now().Add(48*time.Hour)))
}
