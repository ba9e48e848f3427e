package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz"
)

// DigitalSignatureService aplica a assinatura envelopada do leiaute NF-e:
// C14N 1.0 sobre o elemento referenciado, digest SHA-1, SignatureValue
// RSA-SHA1 e o nó Signature injetado como irmão do elemento assinado.
type DigitalSignatureService struct{}

var _ sefaz.Signer = (*DigitalSignatureService)(nil)

func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign assina o elemento identificado por refTag (infNFe, infEvento ou
// infInut) e devolve o documento inteiro com o Signature acrescentado.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate, refTag string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("signer: XML ilegível: %w", err)
	}

	target := doc.FindElement("//" + refTag)
	if target == nil {
		return nil, fmt.Errorf("signer: elemento %s não encontrado no documento", refTag)
	}
	idAttr := target.SelectAttr("Id")
	if idAttr == nil || idAttr.Value == "" {
		return nil, fmt.Errorf("signer: elemento %s sem atributo Id", refTag)
	}
	parent := target.Parent()
	if parent == nil {
		return nil, fmt.Errorf("signer: elemento %s sem pai para receber a assinatura", refTag)
	}

	privKey, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signer: chave privada não é RSA")
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("signer: certificado sem cadeia carregada")
	}

	// 1) Canonicaliza o elemento alvo (C14N 2001) e calcula o digest SHA-1.
	c14n := dsig.MakeC14N10RecCanonicalizer()
	canonTarget, err := c14n.Canonicalize(target)
	if err != nil {
		return nil, fmt.Errorf("signer: erro ao canonicalizar %s: %w", refTag, err)
	}
	digest := sha1.Sum(canonTarget)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	// 2) Monta o <Signature> sem prefixo, com xmlns do XML-DSig.
	sigEl := etree.NewElement("Signature")
	sigEl.CreateAttr("xmlns", NsXMLDSig)

	signedInfoEl := sigEl.CreateElement("SignedInfo")
	signedInfoEl.CreateElement("CanonicalizationMethod").CreateAttr("Algorithm", AlgC14N)
	signedInfoEl.CreateElement("SignatureMethod").CreateAttr("Algorithm", AlgRSASHA1)

	refEl := signedInfoEl.CreateElement("Reference")
	refEl.CreateAttr("URI", "#"+idAttr.Value)
	transformsEl := refEl.CreateElement("Transforms")
	transformsEl.CreateElement("Transform").CreateAttr("Algorithm", AlgEnveloped)
	transformsEl.CreateElement("Transform").CreateAttr("Algorithm", AlgC14N)
	refEl.CreateElement("DigestMethod").CreateAttr("Algorithm", AlgSHA1)
	refEl.CreateElement("DigestValue").SetText(digestB64)

	// 3) Canonicaliza o SignedInfo e assina com RSA-SHA1.
	canonSignedInfo, err := c14n.Canonicalize(signedInfoEl)
	if err != nil {
		return nil, fmt.Errorf("signer: erro ao canonicalizar SignedInfo: %w", err)
	}
	hashed := sha1.Sum(canonSignedInfo)
	sigBytes, err := rsa.SignPKCS1v15(nil, privKey, crypto.SHA1, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("signer: erro ao assinar SignedInfo: %w", err)
	}
	sigEl.CreateElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(sigBytes))

	// 4) KeyInfo com o certificado em DER/base64.
	keyInfoEl := sigEl.CreateElement("KeyInfo")
	x509DataEl := keyInfoEl.CreateElement("X509Data")
	x509DataEl.CreateElement("X509Certificate").
		SetText(base64.StdEncoding.EncodeToString(cert.Certificate[0]))

	// 5) Signature entra como irmão do elemento assinado.
	parent.AddChild(sigEl)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("signer: erro ao serializar documento assinado: %w", err)
	}
	return out, nil
}

// Verify confere o digest e a assinatura RSA de um documento já assinado.
// É somente leitura; serve para diagnóstico e para os testes de round-trip.
func (s *DigitalSignatureService) Verify(signedXML []byte, refTag string) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return fmt.Errorf("signer: XML ilegível: %w", err)
	}

	target := doc.FindElement("//" + refTag)
	if target == nil {
		return fmt.Errorf("signer: elemento %s não encontrado", refTag)
	}
	sigEl := doc.FindElement("//Signature")
	if sigEl == nil {
		return fmt.Errorf("signer: documento sem Signature")
	}
	signedInfoEl := sigEl.FindElement("SignedInfo")
	digestEl := sigEl.FindElement("SignedInfo/Reference/DigestValue")
	sigValueEl := sigEl.FindElement("SignatureValue")
	certEl := sigEl.FindElement("KeyInfo/X509Data/X509Certificate")
	if signedInfoEl == nil || digestEl == nil || sigValueEl == nil || certEl == nil {
		return fmt.Errorf("signer: Signature incompleto")
	}

	c14n := dsig.MakeC14N10RecCanonicalizer()
	canonTarget, err := c14n.Canonicalize(target)
	if err != nil {
		return fmt.Errorf("signer: erro ao canonicalizar %s: %w", refTag, err)
	}
	digest := sha1.Sum(canonTarget)
	if base64.StdEncoding.EncodeToString(digest[:]) != strings.TrimSpace(digestEl.Text()) {
		return fmt.Errorf("signer: DigestValue não confere com o conteúdo de %s", refTag)
	}

	certDER, err := base64.StdEncoding.DecodeString(strings.TrimSpace(certEl.Text()))
	if err != nil {
		return fmt.Errorf("signer: X509Certificate ilegível: %w", err)
	}
	parsed, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("signer: certificado inválido no KeyInfo: %w", err)
	}
	pubKey, ok := parsed.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("signer: chave pública não é RSA")
	}

	canonSignedInfo, err := c14n.Canonicalize(signedInfoEl)
	if err != nil {
		return fmt.Errorf("signer: erro ao canonicalizar SignedInfo: %w", err)
	}
	hashed := sha1.Sum(canonSignedInfo)
	sigBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigValueEl.Text()))
	if err != nil {
		return fmt.Errorf("signer: SignatureValue ilegível: %w", err)
	}
	if err := rsa.VerifyPKCS1v15(pubKey, crypto.SHA1, hashed[:], sigBytes); err != nil {
		return fmt.Errorf("signer: assinatura RSA inválida: %w", err)
	}
	return nil
}
