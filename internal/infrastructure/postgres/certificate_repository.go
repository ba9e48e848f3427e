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

var _ repository.CertificateRepository = (*CertificateRepo)(nil)

// CertificateRepo acessa os certificados A1 cadastrados.
type CertificateRepo struct {
	q Querier
}

func NewCertificateRepository(q Querier) *CertificateRepo {
	return &CertificateRepo{q: q}
}

const certColumns = `
	id, company_config_id, path, password, subject, issuer,
	not_before, not_after, is_valid, is_default, created_at, updated_at`

// GetDefault retorna o certificado padrão do emitente, ou (nil, nil) se
// nenhum estiver marcado.
func (r *CertificateRepo) GetDefault(ctx context.Context, companyConfigID string) (*entity.Certificate, error) {
	query := `SELECT ` + certColumns + `
		FROM certificates
		WHERE company_config_id = $1 AND is_default = true
		LIMIT 1`
	return r.getOne(ctx, query, companyConfigID)
}

// GetByID retorna um certificado específico; (nil, nil) se não existe.
func (r *CertificateRepo) GetByID(ctx context.Context, id string) (*entity.Certificate, error) {
	query := `SELECT ` + certColumns + ` FROM certificates WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// UpdateMetadata grava os metadados extraídos do bundle PKCS#12.
func (r *CertificateRepo) UpdateMetadata(ctx context.Context, cert *entity.Certificate) error {
	query := `
		UPDATE certificates SET
			subject = $2, issuer = $3, not_before = $4, not_after = $5,
			is_valid = $6, updated_at = $7
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		cert.ID, cert.Subject, cert.Issuer, cert.NotBefore, cert.NotAfter,
		cert.IsValid, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update certificate metadata: %w", err)
	}
	return nil
}

func (r *CertificateRepo) getOne(ctx context.Context, query string, args ...any) (*entity.Certificate, error) {
	var c entity.Certificate
	var subject, issuer *string
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.CompanyConfigID, &c.Path, &c.Password, &subject, &issuer,
		&c.NotBefore, &c.NotAfter, &c.IsValid, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	c.Subject = deref(subject)
	c.Issuer = deref(issuer)
	return &c, nil
}
