package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"

	"github.com/pdvlite/nfce-api/internal/application/fiscal"
	domainnfe "github.com/pdvlite/nfce-api/internal/domain/nfe"
	"github.com/pdvlite/nfce-api/internal/infrastructure/postgres"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz/signer"
	httpRouter "github.com/pdvlite/nfce-api/internal/interfaces/http"
	"github.com/pdvlite/nfce-api/pkg/config"
	"github.com/pdvlite/nfce-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sefaz", cfg.Sefaz.Ambiente).
		Msg("iniciando aplicação")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão ao PostgreSQL")
	}
	defer pool.Close()

	saleRepo := postgres.NewSaleRepository(pool)
	companyRepo := postgres.NewCompanyConfigRepository(pool)
	certRepo := postgres.NewCertificateRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	inutRepo := postgres.NewInutilizacaoRepository(pool)

	// Dados do emitente vêm do banco; as env vars SEFAZ_* são o fallback de
	// primeira instalação, antes do cadastro.
	ambiente := cfg.Sefaz.Ambiente
	uf := cfg.Sefaz.UF
	cnpj := ""
	cscID := cfg.Sefaz.CSCID
	cscToken := cfg.Sefaz.CSCToken
	if company, err := companyRepo.Get(ctx); err != nil {
		log.Warn().Err(err).Msg("emitente ainda não cadastrado, usando configuração de ambiente")
	} else {
		cnpj = company.CNPJ
		if company.Ambiente != "" {
			ambiente = company.Ambiente
		}
		if company.UF != "" {
			uf = company.UF
		}
		if company.CSCID != "" {
			cscID = company.CSCID
			cscToken = company.CSCToken
		}
	}

	signerSvc := signer.NewDigitalSignatureService()
	xmlBuilder := sefaz.NewXMLBuilderService()
	qrSvc := sefaz.NewQRCodeService(ambiente, cscID, cscToken)
	sefazClient := sefaz.NewClient(sefaz.Config{
		Ambiente: ambiente,
		UF:       uf,
		CNPJ:     cnpj,
		Timeout:  time.Duration(cfg.Sefaz.TimeoutSec) * time.Second,
	}, signerSvc, nil)

	clock := clockwork.NewRealClock()

	transmitSvc := fiscal.NewTransmitService(fiscal.TransmitDeps{
		Sales:     saleRepo,
		Company:   companyRepo,
		Certs:     certRepo,
		Customers: customerRepo,
		Products:  productRepo,
		ChaveGen:  domainnfe.NewChaveGeneratorService(),
		Builder:   xmlBuilder,
		Signer:    signerSvc,
		Client:    sefazClient,
		QR:        qrSvc,
		LoadCert:  signer.LoadFromP12,
		Clock:     clock,
		Log:       log,
		MaxPolls:  cfg.Sefaz.MaxPolls,
	})
	scheduler := fiscal.NewTransmitScheduler(transmitSvc, saleRepo, clock, log)

	cancelUC := fiscal.NewCancelService(saleRepo, companyRepo, certRepo, sefazClient, signer.LoadFromP12, clock, log)
	certUC := fiscal.NewCertificateService(companyRepo, certRepo, signer.LoadFromP12, signer.Info, clock)

	inutUC := fiscal.NewInutilizacaoService(inutRepo, companyRepo, certRepo, sefazClient, signer.LoadFromP12, clock, log)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	go inutUC.RunSweep(sweepCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Sales:     saleRepo,
		Inuts:     inutRepo,
		Scheduler: scheduler,
		CancelUC:  cancelUC,
		InutUC:    inutUC,
		CertUC:    certUC,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando...")

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("encerramento do servidor")
	}

	// Transmissões em voo não são aguardadas: processing é estado
	// retransmissível e o ciclo recomeça no próximo agendamento.
	log.Info().Msg("aplicação encerrada")
}
