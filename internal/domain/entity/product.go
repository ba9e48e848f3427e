package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa um produto vendável. NCM e unidade alimentam o grupo
// prod do XML; o preço de venda é o vUnCom padrão quando o item não traz um.
type Product struct {
	ID        string
	Codigo    string // Código interno (cProd)
	Nome      string // Descrição (xProd)
	NCM       string // Nomenclatura Comum do Mercosul (8 dígitos)
	Unidade   string // Unidade comercial (uCom), ex: "UN"
	Preco     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
