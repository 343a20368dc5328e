package verifactu

import (
	"time"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

// Estados de clasificación del resultado de un envío.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// RegistrationContext agrupa los datos necesarios para construir el XML del
// registro de facturación de una factura finalizada.
type RegistrationContext struct {
	Invoice  *entity.Invoice
	Settings *entity.InvoiceSettings
	Lines    []*entity.InvoiceLine

	// Datos del registro anterior de la serie (vacíos si es el primero).
	PrevNumber    string
	PrevIssueDate time.Time

	// Datos de la factura rectificada (solo tipo rectificative).
	RectifiedNumber    string
	RectifiedIssueDate time.Time
}

// SubmitResult es el resultado clasificado de la entrega al registro AEAT.
type SubmitResult struct {
	Status  string // accepted | rejected | error
	CSV     string // código seguro de verificación asignado por la AEAT (si accepted)
	Code    string // código de error del registro (si rejected)
	Message string // descripción del rechazo o del fallo
	Payload []byte // cuerpo crudo de la respuesta, para auditoría
}
