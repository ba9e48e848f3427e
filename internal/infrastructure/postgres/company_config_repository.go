package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
)

var _ repository.CompanyConfigRepository = (*CompanyConfigRepo)(nil)

// CompanyConfigRepo acessa o registro único de configuração do emitente.
type CompanyConfigRepo struct {
	q Querier
}

func NewCompanyConfigRepository(q Querier) *CompanyConfigRepo {
	return &CompanyConfigRepo{q: q}
}

// Get retorna a configuração do emitente. Ausência é erro: sem emitente não
// há emissão possível.
func (r *CompanyConfigRepo) Get(ctx context.Context) (*entity.CompanyConfig, error) {
	query := `
		SELECT id, cnpj, inscricao_estadual, razao_social, nome_fantasia,
		       logradouro, numero, bairro, codigo_municipio, municipio, uf, cep,
		       ambiente, nfce_serie, nfce_proximo_numero, csc_id, csc_token,
		       created_at, updated_at
		FROM company_config LIMIT 1`

	var c entity.CompanyConfig
	err := r.q.QueryRow(ctx, query).Scan(
		&c.ID, &c.CNPJ, &c.InscricaoEstadual, &c.RazaoSocial, &c.NomeFantasia,
		&c.Logradouro, &c.NumeroEndereco, &c.Bairro, &c.CodigoMunicipio, &c.Municipio, &c.UF, &c.CEP,
		&c.Ambiente, &c.NFCeSerie, &c.NFCeProximoNumero, &c.CSCID, &c.CSCToken,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: configuração do emitente ausente", domain.ErrEmitenteIncompleto)
		}
		return nil, fmt.Errorf("get company config: %w", err)
	}
	return &c, nil
}
