package billing

import (
	"context"

	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

// BillingTxRunner ejecuta una función dentro de una transacción que incluye
// los repos de facturación. La asignación de número, la lectura de la
// predecesora, el cálculo de huella y el alta de auditoría de una finalización
// comparten la misma transacción: o entra todo al registro o no entra nada.
type BillingTxRunner interface {
	RunInvoicing(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		settingsRepo repository.SettingsRepository,
		auditRepo repository.AuditRepository,
	) error) error
}

// Actor identifica quién dispara una transición, para el log de auditoría.
type Actor struct {
	ID    string
	Label string // "user" | "system" | "worker"
	IP    string
}
