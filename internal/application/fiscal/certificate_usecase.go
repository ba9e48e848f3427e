package fiscal

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/pdvlite/nfce-api/internal/domain"
	"github.com/pdvlite/nfce-api/internal/domain/repository"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz/signer"
)

// CertificateService inspeciona o certificado padrão do emitente: abre o
// bundle, extrai os metadados e sincroniza o registro em banco.
type CertificateService struct {
	company  repository.CompanyConfigRepository
	certs    repository.CertificateRepository
	loadCert CertLoader
	inspect  CertInspector
	clock    clockwork.Clock
}

func NewCertificateService(
	company repository.CompanyConfigRepository,
	certs repository.CertificateRepository,
	loadCert CertLoader,
	inspect CertInspector,
	clock clockwork.Clock,
) *CertificateService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CertificateService{
		company:  company,
		certs:    certs,
		loadCert: loadCert,
		inspect:  inspect,
		clock:    clock,
	}
}

// Inspect abre o certificado padrão e devolve os metadados, atualizando o
// registro persistido (subject, validade, is_valid) como efeito colateral.
func (s *CertificateService) Inspect(ctx context.Context) (*signer.CertInfo, error) {
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, err
	}
	certRec, err := s.certs.GetDefault(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	if certRec == nil {
		return nil, domain.ErrCertificadoNaoConfigurado
	}

	cert, err := s.loadCert(certRec.Path, certRec.Password)
	if err != nil {
		return nil, err
	}
	info, err := s.inspect(cert)
	if err != nil {
		return nil, err
	}

	certRec.Subject = info.Subject
	certRec.Issuer = info.Issuer
	certRec.NotBefore = info.NotBefore
	certRec.NotAfter = info.NotAfter
	certRec.IsValid = !info.Expired(s.clock.Now())
	if err := s.certs.UpdateMetadata(ctx, certRec); err != nil {
		return nil, err
	}
	return info, nil
}
