package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
)

var _ repository.InutilizacaoRepository = (*InutilizacaoRepo)(nil)

// InutilizacaoRepo persiste as inutilizações de faixa de numeração.
type InutilizacaoRepo struct {
	q Querier
}

func NewInutilizacaoRepository(q Querier) *InutilizacaoRepo {
	return &InutilizacaoRepo{q: q}
}

const inutColumns = `
	id, serie, numero_inicial, numero_final, justificativa,
	status, protocolo, cstat, motivo, retry_count, next_retry_at,
	created_at, updated_at`

// Create insere o pedido de inutilização; faixas sobrepostas da mesma série
// dependem de constraint única no schema e voltam como ErrConflict.
func (r *InutilizacaoRepo) Create(ctx context.Context, inut *entity.Inutilizacao) error {
	query := `
		INSERT INTO inutilizacoes (` + inutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		inut.ID, inut.Serie, inut.NumeroInicial, inut.NumeroFinal, inut.Justificativa,
		inut.Status, nullIfEmpty(inut.Protocolo), nullIfEmpty(inut.CStat), nullIfEmpty(inut.Motivo),
		inut.RetryCount, inut.NextRetryAt,
		inut.CreatedAt, inut.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: faixa já registrada", domain.ErrConflict)
		}
		return fmt.Errorf("insert inutilizacao: %w", err)
	}
	return nil
}

// Update grava o resultado da última tentativa.
func (r *InutilizacaoRepo) Update(ctx context.Context, inut *entity.Inutilizacao) error {
	query := `
		UPDATE inutilizacoes SET
			status = $2, protocolo = $3, cstat = $4, motivo = $5,
			retry_count = $6, next_retry_at = $7, updated_at = $8
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		inut.ID, inut.Status, nullIfEmpty(inut.Protocolo), nullIfEmpty(inut.CStat),
		nullIfEmpty(inut.Motivo), inut.RetryCount, inut.NextRetryAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update inutilizacao: %w", err)
	}
	return nil
}

// GetByID retorna a inutilização; (nil, nil) se não existe.
func (r *InutilizacaoRepo) GetByID(ctx context.Context, id string) (*entity.Inutilizacao, error) {
	query := `SELECT ` + inutColumns + ` FROM inutilizacoes WHERE id = $1`
	row := r.q.QueryRow(ctx, query, id)
	inut, err := scanInutilizacao(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inutilizacao: %w", err)
	}
	return inut, nil
}

// ListPendingRetries candidatas da varredura: pendentes, abaixo do teto de
// tentativas e com a janela de retry vencida ou nunca agendada.
func (r *InutilizacaoRepo) ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]*entity.Inutilizacao, error) {
	query := `SELECT ` + inutColumns + `
		FROM inutilizacoes
		WHERE status = $1
		  AND retry_count < $2
		  AND (next_retry_at IS NULL OR next_retry_at <= $3)
		ORDER BY created_at
		LIMIT $4`
	rows, err := r.q.Query(ctx, query, entity.InutStatusPending, entity.MaxInutRetries, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list inutilizacoes pendentes: %w", err)
	}
	defer rows.Close()

	var list []*entity.Inutilizacao
	for rows.Next() {
		inut, err := scanInutilizacao(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inutilizacao: %w", err)
		}
		list = append(list, inut)
	}
	return list, rows.Err()
}

func scanInutilizacao(row pgxScanner) (*entity.Inutilizacao, error) {
	var i entity.Inutilizacao
	var protocolo, cstat, motivo *string
	err := row.Scan(
		&i.ID, &i.Serie, &i.NumeroInicial, &i.NumeroFinal, &i.Justificativa,
		&i.Status, &protocolo, &cstat, &motivo, &i.RetryCount, &i.NextRetryAt,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.Protocolo = deref(protocolo)
	i.CStat = deref(cstat)
	i.Motivo = deref(motivo)
	return &i, nil
}
