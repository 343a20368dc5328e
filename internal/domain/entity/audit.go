package entity

import "time"

// Acciones auditables de una factura.
const (
	AuditActionCreated   = "created"
	AuditActionFinalized = "finalized"
	AuditActionSubmitted = "submitted"
	AuditActionAccepted  = "accepted"
	AuditActionRejected  = "rejected"
	AuditActionRectified = "rectified"
)

// InvoiceAuditLog es un registro inmutable por transición de estado.
// Se escribe en la misma transacción que la transición; el esquema tiene un
// trigger que rechaza UPDATE y DELETE sobre la tabla.
type InvoiceAuditLog struct {
	ID          string
	InvoiceID   string
	WorkspaceID string
	Action      string
	OldSnapshot []byte // JSON del estado anterior (nil en created)
	NewSnapshot []byte // JSON del estado nuevo
	ActorID     string
	ActorLabel  string
	IP          string
	CreatedAt   time.Time
}
