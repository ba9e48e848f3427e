package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo adaptador de produtos. Aceita pool ou tx (Querier).
type ProductRepo struct {
	q Querier
}

func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// GetByID retorna o produto; (nil, nil) se não existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `
		SELECT id, codigo, nome, ncm, unidade, preco, created_at, updated_at
		FROM products WHERE id = $1`
	var p entity.Product
	var ncm, unidade *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Codigo, &p.Nome, &ncm, &unidade, &p.Preco, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	p.NCM = deref(ncm)
	p.Unidade = deref(unidade)
	return &p, nil
}
