// Package fiscal orquestra o ciclo de emissão da NFC-e: transmissão com
// retentativa, cancelamento e inutilização de numeração.
package fiscal

import (
	"context"
	"crypto/tls"

	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz/signer"
)

// SefazClient porta de saída para os web services da SEFAZ. A implementação
// concreta fala SOAP; os testes injetam um fake.
type SefazClient interface {
	Authorize(ctx context.Context, signedNFe []byte) (*sefaz.Result, error)
	QueryReceipt(ctx context.Context, recibo string) (*sefaz.Result, error)
	QueryStatus(ctx context.Context, chave string) (*sefaz.Result, error)
	Cancel(ctx context.Context, cert tls.Certificate, chave, protocolo, justificativa string) (*sefaz.Result, error)
	Inutilizar(ctx context.Context, cert tls.Certificate, p sefaz.InutilizacaoParams) (*sefaz.Result, error)
}

// XMLBuilder monta o documento NFe a partir do contexto da venda.
type XMLBuilder interface {
	Build(ctx *sefaz.NotaBuildContext) ([]byte, error)
}

// QRCodeGenerator monta a URL do QR code para a chave autorizada.
type QRCodeGenerator interface {
	Generate(chave string) (string, error)
}

// CertLoader abre o bundle PKCS#12 do emitente. Injetável para que os testes
// não dependam de arquivo em disco.
type CertLoader func(path, password string) (tls.Certificate, error)

// CertInspector extrai metadados do certificado carregado.
type CertInspector func(cert tls.Certificate) (*signer.CertInfo, error)

// FailureKind classifica a falha de uma tentativa de transmissão e decide o
// comportamento do scheduler.
type FailureKind string

const (
	// FailureTransient rede ou SEFAZ indisponível; retry resolve.
	FailureTransient FailureKind = "transient"
	// FailureBusiness rejeição da SEFAZ (cStat de rejeição); retry pode
	// resolver quando a causa é corrigida fora (ex: cadastro do emitente).
	FailureBusiness FailureKind = "business"
	// FailureFatal erro de configuração (certificado, emitente); retry não
	// resolve sem intervenção.
	FailureFatal FailureKind = "fatal"
)

// TransmitError falha de uma tentativa, com a classificação que o scheduler
// usa para decidir entre reagendar e abortar.
type TransmitError struct {
	Kind FailureKind
	Msg  string
	Err  error
}

func (e *TransmitError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *TransmitError) Unwrap() error { return e.Err }

func transientErr(msg string, err error) *TransmitError {
	return &TransmitError{Kind: FailureTransient, Msg: msg, Err: err}
}

func businessErr(msg string) *TransmitError {
	return &TransmitError{Kind: FailureBusiness, Msg: msg}
}

func fatalErr(msg string, err error) *TransmitError {
	return &TransmitError{Kind: FailureFatal, Msg: msg, Err: err}
}
