package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/entrenia/entrenia-core/internal/application/accounts"
	"github.com/entrenia/entrenia-core/internal/application/billing"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CreateInvoice   *billing.CreateInvoiceUseCase
	FinalizeInvoice *billing.FinalizeInvoiceUseCase
	VerifyChain     *billing.VerifyChainUseCase
	Submitter       *billing.SubmitOrchestrator
	SettingsUC      *billing.SettingsUseCase
	DeletionUC      *accounts.DeletionUseCase
	JWTSecret       string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	api.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Facturación (protegido; finalizar y verificar solo owner/trainer)
	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.CreateInvoice, deps.FinalizeInvoice, deps.VerifyChain, deps.Submitter)
	invoices.Post("/", RequireRole("owner", "trainer"), invoiceHandler.Create)
	invoices.Get("/chain/verify", RequireRole("owner", "trainer"), invoiceHandler.VerifyChain)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Post("/:id/finalize", RequireRole("owner", "trainer"), invoiceHandler.Finalize)
	invoices.Post("/:id/submit", RequireRole("owner", "trainer"), invoiceHandler.Submit)
	invoices.Get("/:id/audit", RequireRole("owner", "trainer"), invoiceHandler.Audit)

	// Configuración de facturación (protegido, solo owner)
	settings := protected.Group("/billing/settings", RequireRole("owner"))
	settingsHandler := NewSettingsHandler(deps.SettingsUC)
	settings.Get("/", settingsHandler.Get)
	settings.Put("/", settingsHandler.Save)
	settings.Post("/certificate", settingsHandler.UploadCertificate)
	settings.Get("/certificate", settingsHandler.Certificate)

	// Ciclo de vida de la cuenta (protegido, cualquier rol autenticado)
	account := protected.Group("/account")
	accountHandler := NewAccountHandler(deps.DeletionUC)
	account.Post("/deletion", accountHandler.RequestDeletion)
	account.Post("/deletion/cancel", accountHandler.CancelDeletion)
}
