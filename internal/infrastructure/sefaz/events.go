package sefaz

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/pdvlite/nfce-api/pkg/nfe"
)

const (
	// Tipo do evento de cancelamento no registro de eventos da NF-e.
	TpEventoCancelamento = "110111"

	versaoEvento = "1.00"
)

// CancelEventParams dados do evento de cancelamento.
type CancelEventParams struct {
	Chave         string
	Protocolo     string // nProt da autorização
	Justificativa string // 15 a 255 caracteres
	CNPJ          string
	UF            string
	Ambiente      string
	Emissao       time.Time // dhEvento
}

// InutilizacaoParams faixa de numeração a inutilizar.
type InutilizacaoParams struct {
	CNPJ          string
	UF            string
	Ambiente      string
	Ano           int // ano da numeração (2 dígitos no Id)
	Serie         int
	NumeroInicial int64
	NumeroFinal   int64
	Justificativa string
}

// BuildCancelEvent monta o envEvento do cancelamento (tpEvento 110111),
// ainda sem assinatura. O infEvento recebe o Id referenciado pelo signer.
func BuildCancelEvent(p CancelEventParams) ([]byte, error) {
	if len(p.Chave) != 44 {
		return nil, fmt.Errorf("sefaz: chave de acesso inválida para cancelamento")
	}
	if len(p.Justificativa) < 15 || len(p.Justificativa) > 255 {
		return nil, fmt.Errorf("sefaz: justificativa deve ter entre 15 e 255 caracteres")
	}
	if p.Protocolo == "" {
		return nil, fmt.Errorf("sefaz: cancelamento exige o protocolo da autorização")
	}

	doc := etree.NewDocument()

	envEvento := doc.CreateElement("envEvento")
	envEvento.CreateAttr("xmlns", NsNFe)
	envEvento.CreateAttr("versao", versaoEvento)
	envEvento.CreateElement("idLote").SetText("1")

	evento := envEvento.CreateElement("evento")
	evento.CreateAttr("versao", versaoEvento)

	infEvento := evento.CreateElement("infEvento")
	// Id = "ID" + tpEvento + chave + nSeqEvento com 2 dígitos
	infEvento.CreateAttr("Id", "ID"+TpEventoCancelamento+p.Chave+"01")
	infEvento.CreateElement("cOrgao").SetText(nfe.UFCode(p.UF))
	infEvento.CreateElement("tpAmb").SetText(p.Ambiente)
	infEvento.CreateElement("CNPJ").SetText(nfe.OnlyDigits(p.CNPJ))
	infEvento.CreateElement("chNFe").SetText(p.Chave)
	infEvento.CreateElement("dhEvento").SetText(p.Emissao.Format("2006-01-02T15:04:05-07:00"))
	infEvento.CreateElement("tpEvento").SetText(TpEventoCancelamento)
	infEvento.CreateElement("nSeqEvento").SetText("1")
	infEvento.CreateElement("verEvento").SetText(versaoEvento)

	detEvento := infEvento.CreateElement("detEvento")
	detEvento.CreateAttr("versao", versaoEvento)
	detEvento.CreateElement("descEvento").SetText("Cancelamento")
	detEvento.CreateElement("nProt").SetText(p.Protocolo)
	detEvento.CreateElement("xJust").SetText(nfe.RemoveAcentos(p.Justificativa))

	return doc.WriteToBytes()
}

// BuildInutilizacao monta o inutNFe de uma faixa de numeração, sem assinatura.
func BuildInutilizacao(p InutilizacaoParams) ([]byte, error) {
	if p.NumeroInicial < 1 || p.NumeroFinal < p.NumeroInicial {
		return nil, fmt.Errorf("sefaz: faixa de numeração inválida (%d..%d)", p.NumeroInicial, p.NumeroFinal)
	}
	if len(p.Justificativa) < 15 || len(p.Justificativa) > 255 {
		return nil, fmt.Errorf("sefaz: justificativa deve ter entre 15 e 255 caracteres")
	}
	cnpj := nfe.OnlyDigits(p.CNPJ)
	if len(cnpj) != 14 {
		return nil, fmt.Errorf("sefaz: CNPJ inválido para inutilização")
	}

	cUF := nfe.UFCode(p.UF)
	ano2 := fmt.Sprintf("%02d", p.Ano%100)
	id := fmt.Sprintf("ID%s%s%s%s%03d%09d%09d",
		cUF, ano2, cnpj, nfe.ModeloNFCe, p.Serie, p.NumeroInicial, p.NumeroFinal)

	doc := etree.NewDocument()

	inutNFe := doc.CreateElement("inutNFe")
	inutNFe.CreateAttr("xmlns", NsNFe)
	inutNFe.CreateAttr("versao", nfe.VersaoLeiaute)

	infInut := inutNFe.CreateElement("infInut")
	infInut.CreateAttr("Id", id)
	infInut.CreateElement("tpAmb").SetText(p.Ambiente)
	infInut.CreateElement("xServ").SetText("INUTILIZAR")
	infInut.CreateElement("cUF").SetText(cUF)
	infInut.CreateElement("ano").SetText(ano2)
	infInut.CreateElement("CNPJ").SetText(cnpj)
	infInut.CreateElement("mod").SetText(nfe.ModeloNFCe)
	infInut.CreateElement("serie").SetText(fmt.Sprintf("%d", p.Serie))
	infInut.CreateElement("nNFIni").SetText(fmt.Sprintf("%d", p.NumeroInicial))
	infInut.CreateElement("nNFFin").SetText(fmt.Sprintf("%d", p.NumeroFinal))
	infInut.CreateElement("xJust").SetText(nfe.RemoveAcentos(p.Justificativa))

	return doc.WriteToBytes()
}
