package repository

import (
	"context"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
)

// CompanyConfigRepository acessa a configuração fiscal do emitente.
// O sistema assume um único registro (singleton por instalação).
type CompanyConfigRepository interface {
	Get(ctx context.Context) (*entity.CompanyConfig, error)
}

// CertificateRepository acessa os certificados A1 do emitente.
type CertificateRepository interface {
	// GetDefault retorna o certificado com is_default=true, ou (nil, nil) se
	// nenhum estiver marcado; ausência é erro de configuração de primeira
	// classe para quem chama, nunca uma suposição.
	GetDefault(ctx context.Context, companyConfigID string) (*entity.Certificate, error)
	GetByID(ctx context.Context, id string) (*entity.Certificate, error)
	// UpdateMetadata grava os metadados extraídos do bundle (subject, validade).
	UpdateMetadata(ctx context.Context, cert *entity.Certificate) error
}
