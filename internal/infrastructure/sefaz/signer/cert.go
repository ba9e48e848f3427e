package signer

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/pdvlite/nfce-api/internal/domain"
)

// CertInfo metadados extraídos do certificado A1, sem expor a chave privada.
type CertInfo struct {
	Subject      string
	Issuer       string
	SerialNumber string
	NotBefore    time.Time
	NotAfter     time.Time
}

// Expired informa se o certificado está fora do período de validade.
func (i *CertInfo) Expired(now time.Time) bool {
	return now.Before(i.NotBefore) || now.After(i.NotAfter)
}

// LoadFromP12 abre um arquivo PKCS#12 (.pfx/.p12) e devolve o par
// chave/certificado pronto para assinar. Os três modos de falha são
// distinguíveis pelo erro de domínio embrulhado: caminho não configurado,
// arquivo ausente e arquivo corrompido ou senha errada.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	if path == "" {
		return tls.Certificate{}, domain.ErrCertificadoNaoConfigurado
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tls.Certificate{}, fmt.Errorf("%w: %s", domain.ErrCertificadoNaoEncontrado, path)
		}
		return tls.Certificate{}, fmt.Errorf("signer: erro ao ler %s: %w", path, err)
	}

	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", domain.ErrCertificadoInvalido, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return tls.Certificate{}, fmt.Errorf("%w: chave privada não é RSA", domain.ErrCertificadoInvalido)
	}

	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  rsaKey,
		Leaf:        cert,
	}, nil
}

// Info extrai os metadados do certificado carregado. Não tem efeitos
// colaterais; serve para persistência e para o endpoint de consulta.
func Info(cert tls.Certificate) (*CertInfo, error) {
	leaf := cert.Leaf
	if leaf == nil {
		if len(cert.Certificate) == 0 {
			return nil, fmt.Errorf("signer: certificado sem cadeia carregada")
		}
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCertificadoInvalido, err)
		}
		leaf = parsed
	}
	return &CertInfo{
		Subject:      leaf.Subject.String(),
		Issuer:       leaf.Issuer.String(),
		SerialNumber: leaf.SerialNumber.String(),
		NotBefore:    leaf.NotBefore,
		NotAfter:     leaf.NotAfter,
	}, nil
}
