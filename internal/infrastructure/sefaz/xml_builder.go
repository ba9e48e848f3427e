package sefaz

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pdvlite/nfce-api/pkg/nfe"
)

// Namespaces oficiais do leiaute NF-e 4.00.
const (
	// Namespace padrão do portal fiscal
	NsNFe = "http://www.portalfiscal.inf.br/nfe"
	// XML Digital Signature
	NsDs = "http://www.w3.org/2000/09/xmldsig#"
)

// XMLBuilderService monta o XML da NFC-e (grupo NFe/infNFe, sem assinatura).
type XMLBuilderService struct{}

// NewXMLBuilderService cria o serviço.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build gera o []byte do documento NFe conforme o leiaute 4.00. O XML sai
// sem o nó Signature; o signer injeta a assinatura depois, como irmão do
// infNFe. A validação estrutural falha antes de emitir qualquer byte.
func (s *XMLBuilderService) Build(ctx *NotaBuildContext) ([]byte, error) {
	if err := s.validate(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	// Root <NFe> com o namespace do portal fiscal. O xmlns fica só no root
	// para que todos os filhos o herdem.
	root := xml.StartElement{
		Name: xml.Name{Local: "NFe"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NsNFe},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// <infNFe Id="NFe..." versao="4.00">: o Id é a referência da assinatura.
	infNFe := xml.StartElement{
		Name: xml.Name{Local: "infNFe"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: "NFe" + ctx.Chave},
			{Name: xml.Name{Local: "versao"}, Value: nfe.VersaoLeiaute},
		},
	}
	_ = enc.EncodeToken(infNFe)

	s.writeIde(enc, ctx)
	s.writeEmit(enc, ctx)
	if ctx.Customer != nil {
		s.writeDest(enc, ctx)
	}
	for i, item := range ctx.Items {
		s.writeDet(enc, i+1, item)
	}
	s.writeTotal(enc, ctx)
	s.writeTransp(enc)
	s.writePag(enc, ctx)
	s.writeInfAdic(enc, ctx)

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "infNFe"}})

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *XMLBuilderService) validate(ctx *NotaBuildContext) error {
	if ctx == nil || ctx.Sale == nil || ctx.Company == nil {
		return fmt.Errorf("sefaz: faltam venda ou configuração do emitente no contexto")
	}
	if len(ctx.Chave) != 44 {
		return fmt.Errorf("sefaz: chave de acesso inválida (%d dígitos)", len(ctx.Chave))
	}
	if len(nfe.OnlyDigits(ctx.Company.CNPJ)) != 14 {
		return fmt.Errorf("sefaz: CNPJ do emitente inválido")
	}
	if ctx.Company.RazaoSocial == "" || ctx.Company.CodigoMunicipio == "" {
		return fmt.Errorf("sefaz: razão social e código do município do emitente são obrigatórios")
	}
	if len(ctx.Items) == 0 {
		return fmt.Errorf("sefaz: venda sem itens")
	}
	if ctx.Customer != nil {
		// Um dest sem CPF nem CNPJ é inválido no schema; melhor barrar aqui
		// do que queimar tentativa de envio com rejeição garantida.
		if doc := nfe.OnlyDigits(ctx.Customer.Documento); !nfe.IsCPF(doc) && !nfe.IsCNPJ(doc) {
			return fmt.Errorf("sefaz: documento do destinatário inválido (%d dígitos)", len(doc))
		}
	}
	for i, item := range ctx.Items {
		if item.Descricao == "" {
			return fmt.Errorf("sefaz: item %d sem descrição", i+1)
		}
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("sefaz: item %d com quantidade não positiva", i+1)
		}
	}
	return nil
}

// writeIde grupo de identificação da nota (B01).
func (s *XMLBuilderService) writeIde(enc *xml.Encoder, ctx *NotaBuildContext) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "ide"}})
	writeEl(enc, "cUF", nfe.UFCode(ctx.Company.UF))
	writeEl(enc, "cNF", ctx.CodigoNumerico)
	writeEl(enc, "natOp", "VENDA AO CONSUMIDOR")
	writeEl(enc, "mod", nfe.ModeloNFCe)
	writeEl(enc, "serie", strconv.Itoa(ctx.Sale.Serie))
	writeEl(enc, "nNF", strconv.FormatInt(ctx.Sale.Numero, 10))
	writeEl(enc, "dhEmi", ctx.Emissao.Format("2006-01-02T15:04:05-07:00"))
	writeEl(enc, "tpNF", "1")
	writeEl(enc, "idDest", "1")
	writeEl(enc, "cMunFG", ctx.Company.CodigoMunicipio)
	writeEl(enc, "tpImp", "4")
	writeEl(enc, "tpEmis", "1")
	writeEl(enc, "cDV", ctx.Chave[43:])
	writeEl(enc, "tpAmb", ctx.Company.Ambiente)
	writeEl(enc, "finNFe", "1")
	writeEl(enc, "indFinal", "1")
	writeEl(enc, "indPres", "1")
	writeEl(enc, "procEmi", "0")
	writeEl(enc, "verProc", "nfce-api 1.0")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "ide"}})
}

// writeEmit grupo do emitente (C01).
func (s *XMLBuilderService) writeEmit(enc *xml.Encoder, ctx *NotaBuildContext) {
	c := ctx.Company
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "emit"}})
	writeEl(enc, "CNPJ", nfe.OnlyDigits(c.CNPJ))
	writeEl(enc, "xNome", nfe.RemoveAcentos(c.RazaoSocial))
	if c.NomeFantasia != "" {
		writeEl(enc, "xFant", nfe.RemoveAcentos(c.NomeFantasia))
	}
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "enderEmit"}})
	writeEl(enc, "xLgr", nfe.RemoveAcentos(c.Logradouro))
	writeEl(enc, "nro", c.NumeroEndereco)
	writeEl(enc, "xBairro", nfe.RemoveAcentos(c.Bairro))
	writeEl(enc, "cMun", c.CodigoMunicipio)
	writeEl(enc, "xMun", nfe.RemoveAcentos(c.Municipio))
	writeEl(enc, "UF", c.UF)
	if cep := nfe.OnlyDigits(c.CEP); cep != "" {
		writeEl(enc, "CEP", cep)
	}
	writeEl(enc, "cPais", nfe.CodigoPaisBR)
	writeEl(enc, "xPais", nfe.NomePaisBR)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "enderEmit"}})
	writeEl(enc, "IE", nfe.OnlyDigits(c.InscricaoEstadual))
	writeEl(enc, "CRT", nfe.CRTSimplesNacional)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "emit"}})
}

// writeDest grupo do destinatário (E01). Só quando o consumidor se
// identificou; NFC-e admite venda sem destinatário.
func (s *XMLBuilderService) writeDest(enc *xml.Encoder, ctx *NotaBuildContext) {
	doc := nfe.OnlyDigits(ctx.Customer.Documento)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "dest"}})
	switch {
	case nfe.IsCNPJ(doc):
		writeEl(enc, "CNPJ", doc)
	case nfe.IsCPF(doc):
		writeEl(enc, "CPF", doc)
	}
	if ctx.Customer.Nome != "" {
		writeEl(enc, "xNome", nfe.TruncarTexto(nfe.RemoveAcentos(ctx.Customer.Nome), 60))
	}
	writeEl(enc, "indIEDest", "9")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "dest"}})
}

// writeDet grupo de detalhamento de produto (H01/I01) com a tributação do
// Simples Nacional: ICMSSN102 e PIS/COFINS não tributados.
func (s *XMLBuilderService) writeDet(enc *xml.Encoder, nItem int, item ItemForXML) {
	_ = enc.EncodeToken(xml.StartElement{
		Name: xml.Name{Local: "det"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "nItem"}, Value: strconv.Itoa(nItem)}},
	})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "prod"}})
	codigo := item.Codigo
	if codigo == "" {
		codigo = strconv.Itoa(nItem)
	}
	writeEl(enc, "cProd", codigo)
	writeEl(enc, "cEAN", "SEM GTIN")
	writeEl(enc, "xProd", nfe.TruncarTexto(nfe.RemoveAcentos(item.Descricao), 120))
	writeEl(enc, "NCM", defaultIfEmpty(nfe.OnlyDigits(item.NCM), "00000000"))
	writeEl(enc, "CFOP", nfe.CFOPVendaConsumidor)
	unidade := defaultIfEmpty(item.Unidade, "UN")
	writeEl(enc, "uCom", unidade)
	writeEl(enc, "qCom", formatQuantidade(item.Quantity))
	writeEl(enc, "vUnCom", formatValor(item.UnitPrice))
	writeEl(enc, "vProd", formatValor(item.Subtotal))
	writeEl(enc, "cEANTrib", "SEM GTIN")
	writeEl(enc, "uTrib", unidade)
	writeEl(enc, "qTrib", formatQuantidade(item.Quantity))
	writeEl(enc, "vUnTrib", formatValor(item.UnitPrice))
	writeEl(enc, "indTot", "1")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "prod"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "imposto"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "ICMS"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "ICMSSN102"}})
	writeEl(enc, "orig", nfe.OrigemNacional)
	writeEl(enc, "CSOSN", nfe.CSOSN102)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "ICMSSN102"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "ICMS"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "PIS"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "PISNT"}})
	writeEl(enc, "CST", "07")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "PISNT"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "PIS"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "COFINS"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "COFINSNT"}})
	writeEl(enc, "CST", "07")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "COFINSNT"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "COFINS"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "imposto"}})

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "det"}})
}

// writeTotal grupo de totais (W01). No Simples Nacional os campos de imposto
// saem zerados; vProd e vNF vêm do total da venda.
func (s *XMLBuilderService) writeTotal(enc *xml.Encoder, ctx *NotaBuildContext) {
	zero := formatValor(decimal.Zero)
	vProd := decimal.Zero
	for _, item := range ctx.Items {
		vProd = vProd.Add(item.Subtotal)
	}

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "total"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "ICMSTot"}})
	writeEl(enc, "vBC", zero)
	writeEl(enc, "vICMS", zero)
	writeEl(enc, "vICMSDeson", zero)
	writeEl(enc, "vFCP", zero)
	writeEl(enc, "vBCST", zero)
	writeEl(enc, "vST", zero)
	writeEl(enc, "vFCPST", zero)
	writeEl(enc, "vFCPSTRet", zero)
	writeEl(enc, "vProd", formatValor(vProd))
	writeEl(enc, "vFrete", zero)
	writeEl(enc, "vSeg", zero)
	writeEl(enc, "vDesc", zero)
	writeEl(enc, "vII", zero)
	writeEl(enc, "vIPI", zero)
	writeEl(enc, "vIPIDevol", zero)
	writeEl(enc, "vPIS", zero)
	writeEl(enc, "vCOFINS", zero)
	writeEl(enc, "vOutro", zero)
	writeEl(enc, "vNF", formatValor(ctx.Sale.Total))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "ICMSTot"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "total"}})
}

// writeTransp NFC-e é sempre sem frete (modFrete 9).
func (s *XMLBuilderService) writeTransp(enc *xml.Encoder) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "transp"}})
	writeEl(enc, "modFrete", "9")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "transp"}})
}

// writePag grupo de pagamento (YA01).
func (s *XMLBuilderService) writePag(enc *xml.Encoder, ctx *NotaBuildContext) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "pag"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "detPag"}})
	writeEl(enc, "tPag", nfe.PaymentCode(ctx.Sale.PaymentMethod))
	writeEl(enc, "vPag", formatValor(ctx.Sale.Total))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "detPag"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "pag"}})
}

// writeInfAdic informações complementares (Z01).
func (s *XMLBuilderService) writeInfAdic(enc *xml.Encoder, ctx *NotaBuildContext) {
	infCpl := nfe.InfAdicSimples + " Venda numero " + strconv.FormatInt(ctx.Sale.Numero, 10) + "."
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "infAdic"}})
	writeEl(enc, "infCpl", nfe.RemoveAcentos(infCpl))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "infAdic"}})
}

func writeEl(enc *xml.Encoder, local, value string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func defaultIfEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// formatValor valores monetários com duas casas decimais.
func formatValor(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// formatQuantidade quantidades comerciais com quatro casas decimais.
func formatQuantidade(d decimal.Decimal) string {
	return d.Round(4).StringFixed(4)
}
