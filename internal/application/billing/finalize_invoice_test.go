package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	domverifactu "github.com/entrenia/entrenia-core/internal/domain/verifactu"
)

const testWorkspace = "ws-1"

var testActor = Actor{ID: "u-1", Label: "user", IP: "10.0.0.1"}

func fixedClock() time.Time {
	loc, _ := time.LoadLocation("Europe/Madrid")
	return time.Date(2025, 3, 15, 10, 0, 0, 0, loc)
}

func newBillingFixture(t *testing.T, submissionEnabled bool) (*fakeStore, *CreateInvoiceUseCase, *FinalizeInvoiceUseCase) {
	t.Helper()
	s := newFakeStore()
	seedSettings(s, testWorkspace, submissionEnabled)
	tx := &fakeTxRunner{s: s}
	createUC := NewCreateInvoiceUseCase(tx, &fakeInvoiceRepo{s: s}, &fakeSettingsRepo{s: s}, &fakeAuditRepo{s: s})
	finalizeUC := NewFinalizeInvoiceUseCase(tx, domverifactu.NewChainCalculator(), fixedClock)
	return s, createUC, finalizeUC
}

func draftRequest() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		Type:         entity.InvoiceTypeStandard,
		CustomerName: "Laura Pérez",
		Lines: []dto.CreateInvoiceLineRequest{
			{Description: "Plan mensual", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), TaxRate: decimal.NewFromInt(21)},
		},
	}
}

func TestFinalize_PrimeraFacturaDeLaSerie(t *testing.T) {
	s, createUC, finalizeUC := newBillingFixture(t, true)
	ctx := context.Background()

	draft, err := createUC.CreateDraft(ctx, testWorkspace, testActor, draftRequest())
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusDraft, draft.Status)
	assert.Empty(t, draft.Number)

	resp, err := finalizeUC.Finalize(ctx, testWorkspace, draft.ID, testActor)
	require.NoError(t, err)

	assert.Equal(t, entity.InvoiceStatusFinalized, resp.Status)
	assert.Equal(t, "F2025-00001", resp.Number)
	assert.Empty(t, resp.PrevHash)
	assert.Len(t, resp.Hash, 64)
	assert.NotEmpty(t, resp.VerifactuUUID)
	assert.Contains(t, resp.QRPayload, "nif=B12345678")
	assert.Contains(t, resp.QRPayload, "numserie=F2025-00001")
	assert.Contains(t, resp.QRPayload, "importe=121.00")
	assert.Equal(t, entity.SubmissionStatusPending, resp.SubmissionStatus)

	// Totales: base 100, cuota 21
	assert.True(t, resp.TotalTax.Equal(decimal.NewFromInt(21)), "cuota: %s", resp.TotalTax)
	assert.True(t, resp.Total.Equal(decimal.NewFromInt(121)), "total: %s", resp.Total)

	// Auditoría: created + finalized
	require.Len(t, s.audits, 2)
	assert.Equal(t, entity.AuditActionCreated, s.audits[0].Action)
	assert.Equal(t, entity.AuditActionFinalized, s.audits[1].Action)
	assert.NotNil(t, s.audits[1].OldSnapshot)
}

func TestFinalize_EncadenaConLaPredecesora(t *testing.T) {
	_, createUC, finalizeUC := newBillingFixture(t, false)
	ctx := context.Background()

	first, err := createUC.CreateDraft(ctx, testWorkspace, testActor, draftRequest())
	require.NoError(t, err)
	firstFinal, err := finalizeUC.Finalize(ctx, testWorkspace, first.ID, testActor)
	require.NoError(t, err)

	second, err := createUC.CreateDraft(ctx, testWorkspace, testActor, draftRequest())
	require.NoError(t, err)
	secondFinal, err := finalizeUC.Finalize(ctx, testWorkspace, second.ID, testActor)
	require.NoError(t, err)

	assert.Equal(t, "F2025-00002", secondFinal.Number)
	assert.Equal(t, firstFinal.Hash, secondFinal.PrevHash)
	assert.NotEqual(t, firstFinal.Hash, secondFinal.Hash)
	// Sin envío habilitado no se encola nada
	assert.Equal(t, entity.SubmissionStatusNone, secondFinal.SubmissionStatus)
}

func TestFinalize_RectificativaUsaSeriePropia(t *testing.T) {
	_, createUC, finalizeUC := newBillingFixture(t, false)
	ctx := context.Background()

	orig, err := createUC.CreateDraft(ctx, testWorkspace, testActor, draftRequest())
	require.NoError(t, err)
	origFinal, err := finalizeUC.Finalize(ctx, testWorkspace, orig.ID, testActor)
	require.NoError(t, err)

	req := draftRequest()
	req.Type = entity.InvoiceTypeRectificative
	req.RectifiedID = orig.ID
	rect, err := createUC.CreateDraft(ctx, testWorkspace, testActor, req)
	require.NoError(t, err)

	rectFinal, err := finalizeUC.Finalize(ctx, testWorkspace, rect.ID, testActor)
	require.NoError(t, err)

	assert.Equal(t, "R2025-00001", rectFinal.Number)
	// Serie propia: la cadena R arranca sin predecesora aunque exista la F
	assert.Empty(t, rectFinal.PrevHash)
	assert.NotEqual(t, origFinal.Hash, rectFinal.Hash)
}

func TestFinalize_YaFinalizadaDevuelveStateError(t *testing.T) {
	_, createUC, finalizeUC := newBillingFixture(t, false)
	ctx := context.Background()

	draft, err := createUC.CreateDraft(ctx, testWorkspace, testActor, draftRequest())
	require.NoError(t, err)
	_, err = finalizeUC.Finalize(ctx, testWorkspace, draft.ID, testActor)
	require.NoError(t, err)

	_, err = finalizeUC.Finalize(ctx, testWorkspace, draft.ID, testActor)
	assert.ErrorIs(t, err, domain.ErrStateError)
}

func TestFinalize_SinConfiguracion(t *testing.T) {
	s := newFakeStore()
	tx := &fakeTxRunner{s: s}
	finalizeUC := NewFinalizeInvoiceUseCase(tx, domverifactu.NewChainCalculator(), fixedClock)

	// Factura en borrador sin settings del workspace
	s.invoices["inv-1"] = &entity.Invoice{ID: "inv-1", WorkspaceID: testWorkspace, Status: entity.InvoiceStatusDraft, Type: entity.InvoiceTypeStandard}

	_, err := finalizeUC.Finalize(context.Background(), testWorkspace, "inv-1", testActor)
	assert.ErrorIs(t, err, domain.ErrSettingsMissing)
}

func TestFinalize_NoExiste(t *testing.T) {
	_, _, finalizeUC := newBillingFixture(t, false)

	_, err := finalizeUC.Finalize(context.Background(), testWorkspace, "nope", testActor)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerifyChain_DetectaManipulacion(t *testing.T) {
	s, createUC, finalizeUC := newBillingFixture(t, false)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		draft, err := createUC.CreateDraft(ctx, testWorkspace, testActor, draftRequest())
		require.NoError(t, err)
		_, err = finalizeUC.Finalize(ctx, testWorkspace, draft.ID, testActor)
		require.NoError(t, err)
		ids = append(ids, draft.ID)
	}

	verifyUC := NewVerifyChainUseCase(&fakeInvoiceRepo{s: s}, domverifactu.NewChainCalculator())

	resp, err := verifyUC.Verify(ctx, testWorkspace, "F")
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, 3, resp.Checked)

	// Manipular el total de la primera factura directamente en el almacén
	s.invoices[ids[0]].Total = decimal.NewFromInt(999)

	resp, err = verifyUC.Verify(ctx, testWorkspace, "F")
	require.NoError(t, err)
	assert.False(t, resp.OK)
	// La recomputación corrida rompe al comparar la segunda factura
	assert.Equal(t, "F2025-00002", resp.BreakNumber)
}

func TestCreateDraft_Validaciones(t *testing.T) {
	_, createUC, _ := newBillingFixture(t, false)
	ctx := context.Background()

	// Sin líneas
	req := draftRequest()
	req.Lines = nil
	_, err := createUC.CreateDraft(ctx, testWorkspace, testActor, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Cantidad no positiva
	req = draftRequest()
	req.Lines[0].Quantity = decimal.Zero
	_, err = createUC.CreateDraft(ctx, testWorkspace, testActor, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// NIF del cliente inválido
	req = draftRequest()
	req.CustomerTaxID = "12345678A" // letra de control incorrecta
	_, err = createUC.CreateDraft(ctx, testWorkspace, testActor, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Rectificativa sin referencia
	req = draftRequest()
	req.Type = entity.InvoiceTypeRectificative
	_, err = createUC.CreateDraft(ctx, testWorkspace, testActor, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Simplificada sin cliente es válida
	req = draftRequest()
	req.Type = entity.InvoiceTypeSimplified
	req.CustomerName = ""
	resp, err := createUC.CreateDraft(ctx, testWorkspace, testActor, req)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceTypeSimplified, resp.Type)
}

func TestCreateDraft_RectificativaSobreBorradorFalla(t *testing.T) {
	_, createUC, _ := newBillingFixture(t, false)
	ctx := context.Background()

	orig, err := createUC.CreateDraft(ctx, testWorkspace, testActor, draftRequest())
	require.NoError(t, err)

	req := draftRequest()
	req.Type = entity.InvoiceTypeRectificative
	req.RectifiedID = orig.ID
	_, err = createUC.CreateDraft(ctx, testWorkspace, testActor, req)
	assert.ErrorIs(t, err, domain.ErrStateError)
}
