// Package sefaz implementa a geração do XML da NFC-e (modelo 65, leiaute 4.00)
// e a comunicação SOAP com os web services da SEFAZ.
package sefaz

import (
	"crypto/tls"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
)

// Signer assina um documento XML e devolve o XML com o nó Signature injetado
// como último filho do pai do elemento referenciado (assinatura envelopada).
type Signer interface {
	// Sign recebe o XML sem assinatura, o certificado com chave privada e a
	// tag do elemento alvo (infNFe, infEvento ou infInut).
	Sign(xmlBytes []byte, cert tls.Certificate, refTag string) ([]byte, error)
}

// ItemForXML linha da venda enriquecida com dados de produto para o grupo det.
type ItemForXML struct {
	Item      *entity.SaleItem
	Codigo    string // cProd
	Descricao string // xProd
	NCM       string
	Unidade   string // uCom
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// NotaBuildContext reúne tudo que o builder precisa para montar o documento.
// Customer nulo é o consumidor não identificado: o grupo dest é omitido.
type NotaBuildContext struct {
	Sale     *entity.Sale
	Company  *entity.CompanyConfig
	Customer *entity.Customer
	Items    []ItemForXML

	Chave          string    // Chave de acesso de 44 dígitos já calculada
	CodigoNumerico string    // cNF embutido na chave
	Emissao        time.Time // dhEmi
}
