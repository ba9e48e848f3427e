package repository

import (
	"context"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
)

// CustomerRepository consulta clientes para o grupo dest do XML.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
}

// ProductRepository consulta produtos para enriquecer as linhas do XML.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}
