package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
	pkgverifactu "github.com/entrenia/entrenia-core/pkg/verifactu"
)

var hundred = decimal.NewFromInt(100)

// CreateInvoiceUseCase crea facturas en borrador y las consulta.
// El borrador es editable y no participa en la cadena; el número y la huella
// se asignan en la finalización.
type CreateInvoiceUseCase struct {
	txRunner     BillingTxRunner
	invoiceRepo  repository.InvoiceRepository
	settingsRepo repository.SettingsRepository
	auditRepo    repository.AuditRepository
}

// NewCreateInvoiceUseCase construye el caso de uso.
func NewCreateInvoiceUseCase(
	txRunner BillingTxRunner,
	invoiceRepo repository.InvoiceRepository,
	settingsRepo repository.SettingsRepository,
	auditRepo repository.AuditRepository,
) *CreateInvoiceUseCase {
	return &CreateInvoiceUseCase{
		txRunner:     txRunner,
		invoiceRepo:  invoiceRepo,
		settingsRepo: settingsRepo,
		auditRepo:    auditRepo,
	}
}

// CreateDraft valida la entrada, calcula totales y persiste la factura en
// borrador junto con el registro de auditoría "created".
func (uc *CreateInvoiceUseCase) CreateDraft(ctx context.Context, workspaceID string, actor Actor, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if len(in.Lines) == 0 {
		return nil, domain.ErrInvalidInput
	}
	invoiceType := in.Type
	if invoiceType == "" {
		invoiceType = entity.InvoiceTypeStandard
	}
	switch invoiceType {
	case entity.InvoiceTypeStandard, entity.InvoiceTypeSimplified, entity.InvoiceTypeRectificative:
	default:
		return nil, domain.ErrInvalidInput
	}

	// La factura completa exige identificar al destinatario; la simplificada no.
	if invoiceType != entity.InvoiceTypeSimplified {
		if in.CustomerName == "" {
			return nil, domain.ErrInvalidInput
		}
	}
	if in.CustomerTaxID != "" {
		if err := pkgverifactu.ValidateNIF(in.CustomerTaxID); err != nil {
			return nil, domain.ErrInvalidInput
		}
	}

	settings, err := uc.settingsRepo.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, domain.ErrSettingsMissing
	}

	// La rectificativa debe apuntar a una factura finalizada del mismo workspace.
	if invoiceType == entity.InvoiceTypeRectificative {
		if in.RectifiedID == "" {
			return nil, domain.ErrInvalidInput
		}
		rectified, err := uc.invoiceRepo.GetByID(ctx, workspaceID, in.RectifiedID)
		if err != nil {
			return nil, err
		}
		if rectified == nil {
			return nil, domain.ErrNotFound
		}
		if !rectified.IsFinalized() {
			return nil, domain.ErrStateError
		}
	}

	now := time.Now()
	inv := &entity.Invoice{
		ID:               uuid.New().String(),
		WorkspaceID:      workspaceID,
		Status:           entity.InvoiceStatusDraft,
		Type:             invoiceType,
		RectifiedID:      in.RectifiedID,
		IssueDatetime:    now,
		IssuerTaxID:      pkgverifactu.NormalizeTaxID(settings.IssuerTaxID),
		CustomerName:     pkgverifactu.NormalizeText(in.CustomerName),
		CustomerTaxID:    pkgverifactu.NormalizeTaxID(in.CustomerTaxID),
		SubmissionStatus: entity.SubmissionStatusNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	lines := make([]*entity.InvoiceLine, 0, len(in.Lines))
	var totalBase, totalTax decimal.Decimal
	for _, l := range in.Lines {
		if l.Description == "" || !l.Quantity.IsPositive() || l.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidInput
		}
		if l.TaxRate.IsNegative() || l.TaxRate.GreaterThan(hundred) {
			return nil, domain.ErrInvalidInput
		}
		// Redondeo por línea: base y cuota a dos decimales antes de sumar
		base := l.Quantity.Mul(l.UnitPrice).Round(2)
		tax := base.Mul(l.TaxRate).Div(hundred).Round(2)
		totalBase = totalBase.Add(base)
		totalTax = totalTax.Add(tax)
		lines = append(lines, &entity.InvoiceLine{
			ID:          uuid.New().String(),
			InvoiceID:   inv.ID,
			Description: pkgverifactu.NormalizeText(l.Description),
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
			LineTotal:   base.Add(tax),
		})
	}
	inv.TotalBase = totalBase
	inv.TotalTax = totalTax
	inv.Total = totalBase.Add(totalTax)

	err = uc.txRunner.RunInvoicing(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.SettingsRepository,
		auditRepo repository.AuditRepository,
	) error {
		if err := invoiceRepo.Create(ctx, inv, lines); err != nil {
			return err
		}
		return auditRepo.Append(ctx, newAuditLog(inv, entity.AuditActionCreated, nil, actor, now))
	})
	if err != nil {
		return nil, err
	}

	return toInvoiceResponse(inv, lines), nil
}

// GetInvoice obtiene una factura con sus líneas.
func (uc *CreateInvoiceUseCase) GetInvoice(ctx context.Context, workspaceID, id string) (*dto.InvoiceResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := uc.invoiceRepo.GetLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(inv, lines), nil
}

// ListAudit devuelve el rastro de auditoría de una factura.
func (uc *CreateInvoiceUseCase) ListAudit(ctx context.Context, workspaceID, invoiceID string) ([]*entity.InvoiceAuditLog, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, workspaceID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return uc.auditRepo.ListByInvoice(ctx, workspaceID, invoiceID)
}

// ── helpers compartidos del paquete ───────────────────────────────────────────

// newAuditLog arma un registro de auditoría con snapshot JSON del estado nuevo.
func newAuditLog(inv *entity.Invoice, action string, oldSnapshot []byte, actor Actor, now time.Time) *entity.InvoiceAuditLog {
	newSnapshot, _ := json.Marshal(inv)
	return &entity.InvoiceAuditLog{
		ID:          uuid.New().String(),
		InvoiceID:   inv.ID,
		WorkspaceID: inv.WorkspaceID,
		Action:      action,
		OldSnapshot: oldSnapshot,
		NewSnapshot: newSnapshot,
		ActorID:     actor.ID,
		ActorLabel:  actor.Label,
		IP:          actor.IP,
		CreatedAt:   now,
	}
}

func toInvoiceResponse(inv *entity.Invoice, lines []*entity.InvoiceLine) *dto.InvoiceResponse {
	resp := &dto.InvoiceResponse{
		ID:               inv.ID,
		Status:           inv.Status,
		Type:             inv.Type,
		Series:           inv.Series,
		Number:           inv.NumberText,
		RectifiedID:      inv.RectifiedID,
		IssueDate:        inv.IssueDatetime.Format(time.RFC3339),
		IssuerTaxID:      inv.IssuerTaxID,
		CustomerName:     inv.CustomerName,
		CustomerTaxID:    inv.CustomerTaxID,
		TotalBase:        inv.TotalBase,
		TotalTax:         inv.TotalTax,
		Total:            inv.Total,
		Hash:             inv.Hash,
		PrevHash:         inv.PrevHash,
		VerifactuUUID:    inv.VerifactuUUID,
		QRPayload:        inv.QRPayload,
		SubmissionStatus: inv.SubmissionStatus,
	}
	if !inv.RegistrationDatetime.IsZero() {
		resp.RegistrationDatetime = inv.RegistrationDatetime.Format(time.RFC3339)
	}
	if inv.SubmittedAt != nil {
		resp.SubmittedAt = inv.SubmittedAt.Format(time.RFC3339)
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, dto.InvoiceLineResponse{
			ID:          l.ID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
			LineTotal:   l.LineTotal,
		})
	}
	return resp
}
