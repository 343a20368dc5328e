package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	// La canonicalización de la cadena usa la zona Europe/Madrid también en
	// contenedores sin tzdata del sistema.
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrenia/entrenia-core/internal/application/accounts"
	"github.com/entrenia/entrenia-core/internal/application/billing"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	domverifactu "github.com/entrenia/entrenia-core/internal/domain/verifactu"
	"github.com/entrenia/entrenia-core/internal/infrastructure/postgres"
	infravault "github.com/entrenia/entrenia-core/internal/infrastructure/vault"
	infraverifactu "github.com/entrenia/entrenia-core/internal/infrastructure/verifactu"
	httpRouter "github.com/entrenia/entrenia-core/internal/interfaces/http"
	"github.com/entrenia/entrenia-core/internal/monitoring"
	"github.com/entrenia/entrenia-core/pkg/config"
	"github.com/entrenia/entrenia-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: "api",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	monitoring.InitMetrics()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	masterKey, err := cfg.Vault.MasterKey()
	if err != nil {
		log.Fatal().Err(err).Msg("llave maestra del vault")
	}
	keyVault, err := infravault.New(masterKey)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar vault")
	}

	software := entity.SoftwareID{
		Name:        cfg.Verifactu.SoftwareName,
		Version:     cfg.Verifactu.SoftwareVersion,
		InstallID:   cfg.Verifactu.SoftwareInstallID,
		VendorName:  cfg.Verifactu.SoftwareVendorName,
		VendorTaxID: cfg.Verifactu.SoftwareVendorTaxID,
		SystemID:    cfg.Verifactu.SoftwareSystemID,
	}

	chain := domverifactu.NewChainCalculator()
	xmlBuilder := infraverifactu.NewXMLBuilderService()
	signerSvc := infraverifactu.NewDigitalSignatureService()
	soapClient := infraverifactu.NewSOAPClient(cfg.Verifactu.SubmitTimeout)

	submitter := billing.NewSubmitOrchestrator(
		txRunner, invoiceRepo, settingsRepo,
		keyVault, xmlBuilder, signerSvc, soapClient,
		log, cfg.Verifactu.SubmitTimeout,
	)

	createInvoiceUC := billing.NewCreateInvoiceUseCase(txRunner, invoiceRepo, settingsRepo, auditRepo)
	finalizeInvoiceUC := billing.NewFinalizeInvoiceUseCase(txRunner, chain, nil)
	verifyChainUC := billing.NewVerifyChainUseCase(invoiceRepo, chain)
	settingsUC := billing.NewSettingsUseCase(settingsRepo, keyVault, software)
	deletionUC := accounts.NewDeletionUseCase(userRepo, cfg.Accounts.RecoveryWindow(), nil)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		CreateInvoice:   createInvoiceUC,
		FinalizeInvoice: finalizeInvoiceUC,
		VerifyChain:     verifyChainUC,
		Submitter:       submitter,
		SettingsUC:      settingsUC,
		DeletionUC:      deletionUC,
		JWTSecret:       cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
