package sefaz

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pdvlite/nfce-api/pkg/nfe"
)

// Hosts de consulta do QR code da NFC-e (versão 2 do QR).
const (
	qrCodeHostProducao    = "https://www.nfce.fazenda.sp.gov.br/qrcode"
	qrCodeHostHomologacao = "https://www.homologacao.nfce.fazenda.sp.gov.br/qrcode"
	qrCodeVersao          = "2"
)

// QRCodeService monta a URL do QR code impresso no DANFE NFC-e. O hash usa o
// CSC (Código de Segurança do Contribuinte); o token nunca aparece na URL.
type QRCodeService struct {
	ambiente string
	cscID    string
	cscToken string
}

func NewQRCodeService(ambiente, cscID, cscToken string) *QRCodeService {
	return &QRCodeService{ambiente: ambiente, cscID: cscID, cscToken: cscToken}
}

// Generate devolve a URL completa para a chave de acesso informada.
func (s *QRCodeService) Generate(chave string) (string, error) {
	if len(chave) != 44 {
		return "", fmt.Errorf("sefaz: chave de acesso inválida para QR code (%d dígitos)", len(chave))
	}
	if s.cscID == "" || s.cscToken == "" {
		return "", fmt.Errorf("sefaz: CSC não configurado para geração do QR code")
	}

	params := strings.Join([]string{chave, qrCodeVersao, s.ambiente, s.cscID}, "|")
	sum := sha1.Sum([]byte(params + s.cscToken))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))

	host := qrCodeHostHomologacao
	if s.ambiente == nfe.AmbienteProducao {
		host = qrCodeHostProducao
	}
	return host + "?p=" + params + "|" + hash, nil
}
