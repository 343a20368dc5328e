package repository

import (
	"context"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

// InvoiceRepository es el puerto de persistencia de facturas.
type InvoiceRepository interface {
	// Create persiste la cabecera en borrador y sus líneas.
	Create(ctx context.Context, inv *entity.Invoice, lines []*entity.InvoiceLine) error

	// GetByID obtiene la cabecera; nil si no existe.
	GetByID(ctx context.Context, workspaceID, id string) (*entity.Invoice, error)

	// GetLines obtiene las líneas de una factura en orden estable.
	GetLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error)

	// LastFinalized devuelve la última factura finalizada de (workspace, serie)
	// — la predecesora de cadena — o nil si la serie está vacía. Se invoca
	// dentro de la transacción de finalización, con el contador ya bloqueado.
	LastFinalized(ctx context.Context, workspaceID, series string) (*entity.Invoice, error)

	// Finalize graba número, huellas, UUID, timestamps y QR, y pasa el estado
	// a finalized. Falla si la factura ya no está en draft.
	Finalize(ctx context.Context, inv *entity.Invoice) error

	// UpdateSubmission actualiza solo los campos submission_* tras un envío.
	UpdateSubmission(ctx context.Context, inv *entity.Invoice) error

	// ListFinalized devuelve las facturas finalizadas de (workspace, serie)
	// en orden de finalización (número ascendente), para verificar la cadena.
	ListFinalized(ctx context.Context, workspaceID, series string) ([]*entity.Invoice, error)
}
