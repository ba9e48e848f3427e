package repository

import (
	"context"
	"time"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
)

// InutilizacaoRepository persiste os eventos de inutilização de faixa.
type InutilizacaoRepository interface {
	Create(ctx context.Context, inut *entity.Inutilizacao) error
	Update(ctx context.Context, inut *entity.Inutilizacao) error
	GetByID(ctx context.Context, id string) (*entity.Inutilizacao, error)
	// ListPendingRetries seleciona candidatas da varredura: status pending,
	// retry_count < 5 e (next_retry_at nulo ou vencido).
	ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]*entity.Inutilizacao, error)
}
