package entity

import "time"

// Customer representa o cliente da venda. Opcional: NFC-e sem cliente é o
// caso "consumidor não identificado" e o XML simplesmente omite o grupo dest.
type Customer struct {
	ID        string
	Nome      string
	Documento string // CPF (11 dígitos) ou CNPJ (14); a ramificação do XML usa o tamanho
	Email     string
	Telefone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
