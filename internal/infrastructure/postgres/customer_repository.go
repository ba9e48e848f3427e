package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo adaptador de clientes. Aceita pool ou tx (Querier).
type CustomerRepo struct {
	q Querier
}

func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

// GetByID retorna o cliente; (nil, nil) se não existe.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	query := `
		SELECT id, nome, documento, email, telefone, created_at, updated_at
		FROM customers WHERE id = $1`
	var c entity.Customer
	var documento, email, telefone *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Nome, &documento, &email, &telefone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	c.Documento = deref(documento)
	c.Email = deref(email)
	c.Telefone = deref(telefone)
	return &c, nil
}
