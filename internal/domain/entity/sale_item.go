package entity

import "github.com/shopspring/decimal"

// SaleItem representa uma linha da venda. Imutável depois que a venda sai de
// draft; a quantidade usa ponto fixo de 3 casas no domínio e 4 no XML.
type SaleItem struct {
	ID        string
	SaleID    string
	ProductID string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}
