package billing

import (
	"context"

	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
	"github.com/entrenia/entrenia-core/internal/monitoring"
	domverifactu "github.com/entrenia/entrenia-core/internal/domain/verifactu"
)

// VerifyChainUseCase recorre las facturas finalizadas de una serie y
// recalcula la cadena de huellas. Solo lee: una ruptura se reporta, nunca
// se intenta reparar.
type VerifyChainUseCase struct {
	invoiceRepo repository.InvoiceRepository
	chain       *domverifactu.ChainCalculator
}

// NewVerifyChainUseCase construye el caso de uso.
func NewVerifyChainUseCase(invoiceRepo repository.InvoiceRepository, chain *domverifactu.ChainCalculator) *VerifyChainUseCase {
	return &VerifyChainUseCase{invoiceRepo: invoiceRepo, chain: chain}
}

// Verify comprueba la integridad de la serie completa del workspace.
func (uc *VerifyChainUseCase) Verify(ctx context.Context, workspaceID, series string) (*dto.ChainVerificationResponse, error) {
	if series == "" {
		return nil, domain.ErrInvalidInput
	}
	invoices, err := uc.invoiceRepo.ListFinalized(ctx, workspaceID, series)
	if err != nil {
		return nil, err
	}

	records := make([]domverifactu.ChainRecord, 0, len(invoices))
	for _, inv := range invoices {
		records = append(records, domverifactu.ChainRecord{
			Input: domverifactu.ChainInput{
				Number:       inv.NumberText,
				IssueDate:    inv.IssueDatetime,
				InvoiceType:  inv.Type,
				IssuerTaxID:  inv.IssuerTaxID,
				TotalTax:     inv.TotalTax,
				Total:        inv.Total,
				Registration: inv.RegistrationDatetime,
			},
			StoredPrevHash: inv.PrevHash,
			StoredHash:     inv.Hash,
		})
	}

	res := uc.chain.VerifyChain(records)
	if res.OK {
		monitoring.ChainVerifications.WithLabelValues("ok").Inc()
	} else {
		monitoring.ChainVerifications.WithLabelValues("broken").Inc()
	}
	resp := &dto.ChainVerificationResponse{
		Series:  series,
		Checked: len(records),
		OK:      res.OK,
	}
	if !res.OK {
		resp.BreakNumber = res.BreakNumber
		resp.BreakIndex = res.BreakIndex
	}
	return resp, nil
}
