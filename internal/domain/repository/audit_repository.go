package repository

import (
	"context"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

// AuditRepository es el puerto del log de auditoría de facturas.
// Solo inserta: el esquema rechaza UPDATE/DELETE con un trigger.
type AuditRepository interface {
	// Append inserta un registro de auditoría. Se ejecuta dentro de la misma
	// transacción que la transición de estado que documenta.
	Append(ctx context.Context, log *entity.InvoiceAuditLog) error

	// ListByInvoice devuelve los registros de una factura en orden de commit.
	ListByInvoice(ctx context.Context, workspaceID, invoiceID string) ([]*entity.InvoiceAuditLog, error)
}
