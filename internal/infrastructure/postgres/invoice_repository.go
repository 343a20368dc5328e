package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, workspace_id, series, number, number_text, status, type, rectified_id,
	issue_datetime, issuer_tax_id, customer_name, customer_tax_id,
	total_base, total_tax, total,
	prev_hash, hash, verifactu_uuid, registration_datetime, qr_payload,
	submission_status, submission_response, submitted_at,
	created_at, updated_at`

// Create persiste la cabecera en borrador y sus líneas.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice, lines []*entity.InvoiceLine) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (id, workspace_id, series, number, number_text, status, type, rectified_id,
			issue_datetime, issuer_tax_id, customer_name, customer_tax_id,
			total_base, total_tax, total,
			prev_hash, hash, verifactu_uuid, registration_datetime, qr_payload,
			submission_status, submission_response, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`
	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.WorkspaceID, nullIfEmpty(inv.Series), inv.Number, nullIfEmpty(inv.NumberText),
		inv.Status, inv.Type, nullIfEmpty(inv.RectifiedID),
		nullIfZeroTime(inv.IssueDatetime), nullIfEmpty(inv.IssuerTaxID),
		nullIfEmpty(inv.CustomerName), nullIfEmpty(inv.CustomerTaxID),
		inv.TotalBase, inv.TotalTax, inv.Total,
		nullIfEmpty(inv.PrevHash), nullIfEmpty(inv.Hash), nullIfEmpty(inv.VerifactuUUID),
		nullIfZeroTime(inv.RegistrationDatetime), nullIfEmpty(inv.QRPayload),
		inv.SubmissionStatus, nullIfEmpty(inv.SubmissionResponse), inv.SubmittedAt,
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	for _, line := range lines {
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.InvoiceID = inv.ID
		_, err := r.q.Exec(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, description, quantity, unit_price, tax_rate, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			line.ID, line.InvoiceID, line.Description, line.Quantity, line.UnitPrice, line.TaxRate, line.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert invoice line: %w", err)
		}
	}
	return nil
}

// GetByID obtiene la cabecera; nil si no existe en el workspace.
func (r *InvoiceRepo) GetByID(ctx context.Context, workspaceID, id string) (*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE workspace_id = $1 AND id = $2`
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, workspaceID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// GetLines obtiene las líneas de una factura en orden estable.
func (r *InvoiceRepo) GetLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	query := `
		SELECT id, invoice_id, description, quantity, unit_price, tax_rate, line_total
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// LastFinalized devuelve la última factura finalizada de (workspace, serie) o nil.
func (r *InvoiceRepo) LastFinalized(ctx context.Context, workspaceID, series string) (*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + `
		FROM invoices
		WHERE workspace_id = $1 AND series = $2 AND status = $3
		ORDER BY number DESC LIMIT 1`
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, workspaceID, series, entity.InvoiceStatusFinalized))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last finalized invoice: %w", err)
	}
	return inv, nil
}

// Finalize graba número, huellas, UUID, timestamps y QR, y pasa el estado a
// finalized. El predicado status = draft hace la transición idempotente frente
// a carreras: la segunda finalización no encuentra fila.
func (r *InvoiceRepo) Finalize(ctx context.Context, inv *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET series = $3, number = $4, number_text = $5, status = $6,
		    issue_datetime = $7, issuer_tax_id = $8,
		    prev_hash = $9, hash = $10, verifactu_uuid = $11,
		    registration_datetime = $12, qr_payload = $13,
		    submission_status = $14, updated_at = $15
		WHERE workspace_id = $1 AND id = $2 AND status = $16`
	tag, err := r.q.Exec(ctx, query,
		inv.WorkspaceID, inv.ID,
		inv.Series, inv.Number, inv.NumberText, entity.InvoiceStatusFinalized,
		inv.IssueDatetime, inv.IssuerTaxID,
		nullIfEmpty(inv.PrevHash), inv.Hash, inv.VerifactuUUID,
		inv.RegistrationDatetime, inv.QRPayload,
		inv.SubmissionStatus, inv.UpdatedAt,
		entity.InvoiceStatusDraft,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: numero de serie ya asignado", domain.ErrConflict)
		}
		if isDeadlock(err) || isSerializationFailure(err) {
			return fmt.Errorf("%w: concurrencia al finalizar", domain.ErrConflict)
		}
		return fmt.Errorf("finalize invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: la factura no está en borrador", domain.ErrStateError)
	}
	return nil
}

// UpdateSubmission actualiza solo los campos submission_* tras un envío.
func (r *InvoiceRepo) UpdateSubmission(ctx context.Context, inv *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET submission_status = $3, submission_response = $4, submitted_at = $5, updated_at = $6
		WHERE workspace_id = $1 AND id = $2`
	_, err := r.q.Exec(ctx, query,
		inv.WorkspaceID, inv.ID,
		inv.SubmissionStatus, nullIfEmpty(inv.SubmissionResponse), inv.SubmittedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

// ListFinalized devuelve las finalizadas de (workspace, serie) en orden de número.
func (r *InvoiceRepo) ListFinalized(ctx context.Context, workspaceID, series string) ([]*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + `
		FROM invoices
		WHERE workspace_id = $1 AND series = $2 AND status = $3
		ORDER BY number ASC`
	rows, err := r.q.Query(ctx, query, workspaceID, series, entity.InvoiceStatusFinalized)
	if err != nil {
		return nil, fmt.Errorf("list finalized invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// ── Helpers de scan ───────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var inv entity.Invoice
	var series, numberText, rectifiedID, issuerTaxID, customerName, customerTaxID *string
	var prevHash, hash, verifactuUUID, qrPayload, submissionResponse *string
	var issueDT, registrationDT *time.Time
	err := row.Scan(
		&inv.ID, &inv.WorkspaceID, &series, &inv.Number, &numberText,
		&inv.Status, &inv.Type, &rectifiedID,
		&issueDT, &issuerTaxID, &customerName, &customerTaxID,
		&inv.TotalBase, &inv.TotalTax, &inv.Total,
		&prevHash, &hash, &verifactuUUID, &registrationDT, &qrPayload,
		&inv.SubmissionStatus, &submissionResponse, &inv.SubmittedAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Series = derefStr(series)
	inv.NumberText = derefStr(numberText)
	inv.RectifiedID = derefStr(rectifiedID)
	inv.IssuerTaxID = derefStr(issuerTaxID)
	inv.CustomerName = derefStr(customerName)
	inv.CustomerTaxID = derefStr(customerTaxID)
	inv.PrevHash = derefStr(prevHash)
	inv.Hash = derefStr(hash)
	inv.VerifactuUUID = derefStr(verifactuUUID)
	inv.QRPayload = derefStr(qrPayload)
	inv.SubmissionResponse = derefStr(submissionResponse)
	if issueDT != nil {
		inv.IssueDatetime = *issueDT
	}
	if registrationDT != nil {
		inv.RegistrationDatetime = *registrationDT
	}
	return &inv, nil
}

func nullIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
