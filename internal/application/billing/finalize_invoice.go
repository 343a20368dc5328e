package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
	domverifactu "github.com/entrenia/entrenia-core/internal/domain/verifactu"
)

// FinalizeInvoiceUseCase convierte un borrador en una factura del registro:
// asigna el consecutivo, engancha la huella con la predecesora y graba el QR.
// Todo dentro de una transacción: la fila de contadores se bloquea primero,
// así que dos finalizaciones concurrentes de la misma serie se serializan y
// el orden de número es el orden de commit.
type FinalizeInvoiceUseCase struct {
	txRunner BillingTxRunner
	chain    *domverifactu.ChainCalculator
	now      func() time.Time
}

// NewFinalizeInvoiceUseCase construye el caso de uso. nowFn permite fijar el
// reloj en tests; con nil usa time.Now.
func NewFinalizeInvoiceUseCase(txRunner BillingTxRunner, chain *domverifactu.ChainCalculator, nowFn func() time.Time) *FinalizeInvoiceUseCase {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &FinalizeInvoiceUseCase{txRunner: txRunner, chain: chain, now: nowFn}
}

// Finalize ejecuta la transición draft -> finalized.
func (uc *FinalizeInvoiceUseCase) Finalize(ctx context.Context, workspaceID, invoiceID string, actor Actor) (*dto.InvoiceResponse, error) {
	var result *entity.Invoice
	var lines []*entity.InvoiceLine

	err := uc.txRunner.RunInvoicing(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		settingsRepo repository.SettingsRepository,
		auditRepo repository.AuditRepository,
	) error {
		inv, err := invoiceRepo.GetByID(ctx, workspaceID, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return domain.ErrNotFound
		}
		if inv.Status != entity.InvoiceStatusDraft {
			return domain.ErrStateError
		}

		settings, err := settingsRepo.Get(ctx, workspaceID)
		if err != nil {
			return err
		}
		if settings == nil {
			return domain.ErrSettingsMissing
		}

		oldSnapshot, _ := json.Marshal(inv)
		now := uc.now()
		series := settings.SeriesFor(inv.Type)

		// 1) Consecutivo bajo bloqueo de fila; sin huecos dentro de la serie
		number, err := settingsRepo.AllocateNumber(ctx, workspaceID, series)
		if err != nil {
			return err
		}

		// 2) Predecesora de cadena (con el contador ya bloqueado, nadie más
		// puede finalizar en esta serie hasta el commit)
		prev, err := invoiceRepo.LastFinalized(ctx, workspaceID, series)
		if err != nil {
			return err
		}
		prevHash := ""
		if prev != nil {
			prevHash = prev.Hash
		}

		// 3) Campos de registro
		inv.Series = series
		inv.Number = number
		inv.NumberText = FormatNumber(series, now.Year(), number)
		inv.IssueDatetime = now
		inv.RegistrationDatetime = now
		inv.VerifactuUUID = uuid.New().String()
		inv.PrevHash = prevHash
		inv.IssuerTaxID = settings.IssuerTaxID

		hash, err := uc.chain.ComputeHash(&domverifactu.ChainInput{
			Number:       inv.NumberText,
			IssueDate:    inv.IssueDatetime,
			InvoiceType:  inv.Type,
			IssuerTaxID:  inv.IssuerTaxID,
			TotalTax:     inv.TotalTax,
			Total:        inv.Total,
			PrevHash:     prevHash,
			Registration: inv.RegistrationDatetime,
		})
		if err != nil {
			return err
		}
		inv.Hash = hash

		qr, err := domverifactu.EncodeQR(domverifactu.QRInput{
			IssuerTaxID: inv.IssuerTaxID,
			Number:      inv.NumberText,
			IssueDate:   inv.IssueDatetime,
			Total:       inv.Total,
		}, settings.SubmissionEnvironment)
		if err != nil {
			return err
		}
		inv.QRPayload = qr

		inv.Status = entity.InvoiceStatusFinalized
		if settings.SubmissionEnabled {
			inv.SubmissionStatus = entity.SubmissionStatusPending
		}
		inv.UpdatedAt = now

		// 4) Persistir y auditar en la misma transacción
		if err := invoiceRepo.Finalize(ctx, inv); err != nil {
			return err
		}
		if err := auditRepo.Append(ctx, newAuditLog(inv, entity.AuditActionFinalized, oldSnapshot, actor, now)); err != nil {
			return err
		}

		// La rectificativa deja rastro también en la factura rectificada
		if inv.Type == entity.InvoiceTypeRectificative && inv.RectifiedID != "" {
			rectified, err := invoiceRepo.GetByID(ctx, workspaceID, inv.RectifiedID)
			if err != nil {
				return err
			}
			if rectified != nil {
				if err := auditRepo.Append(ctx, newAuditLog(rectified, entity.AuditActionRectified, nil, actor, now)); err != nil {
					return err
				}
			}
		}

		lines, err = invoiceRepo.GetLines(ctx, inv.ID)
		if err != nil {
			return err
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toInvoiceResponse(result, lines), nil
}

// FormatNumber produce la forma externa del número: {serie}{año}-{consecutivo
// con ceros a cinco posiciones}, p. ej. "F2025-00001".
func FormatNumber(series string, year, number int) string {
	return fmt.Sprintf("%s%d-%05d", series, year, number)
}
