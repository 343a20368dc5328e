package repository

import (
	"context"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

// SettingsRepository es el puerto de configuración de facturación por workspace.
type SettingsRepository interface {
	// Get obtiene la configuración; nil si el workspace no la tiene.
	Get(ctx context.Context, workspaceID string) (*entity.InvoiceSettings, error)

	// Save crea o actualiza la configuración (sin tocar contadores ni certificado).
	Save(ctx context.Context, s *entity.InvoiceSettings) error

	// AllocateNumber asigna el siguiente consecutivo de (workspace, serie)
	// bajo SELECT ... FOR UPDATE sobre la fila de configuración. Debe llamarse
	// dentro de una transacción viva; el caller hace commit o rollback, y el
	// orden de asignación es el orden de commit. Devuelve el número entero
	// asignado. Deadlocks se clasifican como conflicto reintendable.
	AllocateNumber(ctx context.Context, workspaceID, series string) (int, error)

	// StoreCertificate persiste el certificado cifrado del workspace,
	// reemplazando el anterior si existe.
	StoreCertificate(ctx context.Context, cert *entity.Certificate) error

	// GetCertificate obtiene el certificado cifrado; nil si no hay.
	GetCertificate(ctx context.Context, workspaceID string) (*entity.Certificate, error)
}
