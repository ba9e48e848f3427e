package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

// SaleRepo adaptador de persistência de vendas. Aceita pool ou tx (Querier).
type SaleRepo struct {
	q Querier
}

func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// GetByID carrega a venda e seus itens; (nil, nil) quando não existe.
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	query := `
		SELECT id, numero, serie, customer_id, total, payment_method, status,
		       chave_acesso, recibo, protocolo, cancel_protocol, qr_code, xml_assinado,
		       error_message, authorized_at, created_at, updated_at
		FROM sales WHERE id = $1`

	var s entity.Sale
	var customerID, chave, recibo, protocolo, cancelProt, qrCode, xmlAssinado, errorMsg *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Numero, &s.Serie, &customerID, &s.Total, &s.PaymentMethod, &s.Status,
		&chave, &recibo, &protocolo, &cancelProt, &qrCode, &xmlAssinado,
		&errorMsg, &s.AuthorizedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	s.CustomerID = deref(customerID)
	s.ChaveAcesso = deref(chave)
	s.Recibo = deref(recibo)
	s.Protocolo = deref(protocolo)
	s.CancelProtocol = deref(cancelProt)
	s.QRCode = deref(qrCode)
	s.XMLAssinado = deref(xmlAssinado)
	s.ErrorMessage = deref(errorMsg)

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Items = items
	return &s, nil
}

// Update grava os campos fiscais da venda em uma única escrita.
func (r *SaleRepo) Update(ctx context.Context, sale *entity.Sale) error {
	query := `
		UPDATE sales SET
			status = $2,
			chave_acesso = $3,
			recibo = $4,
			protocolo = $5,
			cancel_protocol = $6,
			qr_code = $7,
			xml_assinado = $8,
			error_message = $9,
			authorized_at = $10,
			updated_at = $11
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		sale.ID,
		sale.Status,
		nullIfEmpty(sale.ChaveAcesso),
		nullIfEmpty(sale.Recibo),
		nullIfEmpty(sale.Protocolo),
		nullIfEmpty(sale.CancelProtocol),
		nullIfEmpty(sale.QRCode),
		nullIfEmpty(sale.XMLAssinado),
		nullIfEmpty(sale.ErrorMessage),
		sale.AuthorizedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update sale %s: nenhuma linha afetada", sale.ID)
	}
	return nil
}

// UpdateStatus caminho rápido do job: só status e mensagem de erro.
func (r *SaleRepo) UpdateStatus(ctx context.Context, id, status, errorMessage string) error {
	query := `
		UPDATE sales SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, status, nullIfEmpty(errorMessage), time.Now()); err != nil {
		return fmt.Errorf("update sale status: %w", err)
	}
	return nil
}

func (r *SaleRepo) loadItems(ctx context.Context, saleID string) ([]*entity.SaleItem, error) {
	query := `
		SELECT id, sale_id, product_id, quantity, unit_price, subtotal
		FROM sale_items WHERE sale_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	defer rows.Close()

	var items []*entity.SaleItem
	for rows.Next() {
		var it entity.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
