package repository

import (
	"context"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
)

// SaleRepository define a porta de persistência de vendas e itens.
// Update grava o conjunto de campos fiscais em uma única escrita; a semântica
// assumida é a de um update atômico por linha (sem transação multi-campo além
// do que a própria escrita dá).
type SaleRepository interface {
	// GetByID retorna a venda com os itens carregados; (nil, nil) se não existe.
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	// Update persiste status, chave, protocolos, QR, XML e mensagem de erro.
	Update(ctx context.Context, sale *entity.Sale) error
	// UpdateStatus grava apenas status e mensagem de erro (caminho rápido do job).
	UpdateStatus(ctx context.Context, id, status, errorMessage string) error
}
