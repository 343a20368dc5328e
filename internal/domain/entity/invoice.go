package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de factura VeriFactu.
const (
	InvoiceTypeStandard      = "standard"      // F1: factura completa
	InvoiceTypeSimplified    = "simplified"    // F2: factura simplificada (ticket)
	InvoiceTypeRectificative = "rectificative" // R: factura rectificativa
)

// Estados del ciclo de vida de la factura. No hay camino de vuelta desde finalized.
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusFinalized = "finalized"
)

// Estados de envío a la AEAT. Solo los campos submission_* evolucionan
// después de la finalización.
const (
	SubmissionStatusNone     = "none"
	SubmissionStatusPending  = "pending"
	SubmissionStatusAccepted = "accepted"
	SubmissionStatusRejected = "rejected"
	SubmissionStatusError    = "error"
)

// Invoice representa la cabecera de una factura del registro VeriFactu.
// Tras la finalización los campos del negocio y de cadena son inmutables.
type Invoice struct {
	ID          string
	WorkspaceID string
	Series      string // serie ("F" estándar, "R" rectificativa)
	Number      int    // consecutivo dentro de (workspace, serie); 0 en borrador
	NumberText  string // forma externa: {prefijo}{año}-{00000}

	Status        string
	Type          string // standard | simplified | rectificative
	RectifiedID   string // factura rectificada (solo tipo rectificative); la cadena lo ignora
	IssueDatetime time.Time
	IssuerTaxID   string
	CustomerName  string // snapshot desnormalizado del cliente
	CustomerTaxID string

	TotalBase decimal.Decimal
	TotalTax  decimal.Decimal
	Total     decimal.Decimal

	// Campos de cadena (se fijan en la finalización).
	PrevHash             string // hex(64) de la predecesora; vacío si es la primera de la cadena
	Hash                 string // hex(64) SHA-256 de la canonicalización
	VerifactuUUID        string
	RegistrationDatetime time.Time // instante de registro; se canoniza en hora civil del emisor
	QRPayload            string    // URL de verificación (opaca una vez grabada)

	// Estado de envío.
	SubmissionStatus   string
	SubmissionResponse string // payload crudo de la respuesta AEAT (JSON)
	SubmittedAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFinalized indica si la factura ya entró al registro encadenado.
func (i *Invoice) IsFinalized() bool {
	return i.Status == InvoiceStatusFinalized
}

// InvoiceLine es una línea inmutable de la factura.
type InvoiceLine struct {
	ID          string
	InvoiceID   string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal // porcentaje (21, 10, 4, 0)
	LineTotal   decimal.Decimal
}
