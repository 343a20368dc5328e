package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

func seedFinalizedInvoice(s *fakeStore) *entity.Invoice {
	inv := &entity.Invoice{
		ID:               "inv-1",
		WorkspaceID:      testWorkspace,
		Series:           "F",
		Number:           1,
		NumberText:       "F2025-00001",
		Status:           entity.InvoiceStatusFinalized,
		Type:             entity.InvoiceTypeStandard,
		SubmissionStatus: entity.SubmissionStatusPending,
	}
	s.invoices[inv.ID] = inv
	return inv
}

func newSubmitFixture(s *fakeStore) *SubmitOrchestrator {
	return NewSubmitOrchestrator(
		&fakeTxRunner{s: s}, &fakeInvoiceRepo{s: s}, &fakeSettingsRepo{s: s},
		nil, nil, nil, nil, nil, time.Second,
	)
}

func TestSubmit_ResultadoYAuditoriaSePublicanJuntos(t *testing.T) {
	s := newFakeStore()
	seedFinalizedInvoice(s)
	o := newSubmitFixture(s)

	cp := *s.invoices["inv-1"]
	cp.SubmissionStatus = entity.SubmissionStatusAccepted
	cp.SubmissionResponse = "<RespuestaLinea/>"

	err := o.persistOutcome(context.Background(), &cp, testActor, fixedClock(), entity.AuditActionAccepted)
	require.NoError(t, err)

	assert.Equal(t, entity.SubmissionStatusAccepted, s.invoices["inv-1"].SubmissionStatus)
	require.Len(t, s.audits, 2)
	assert.Equal(t, entity.AuditActionSubmitted, s.audits[0].Action)
	assert.Equal(t, entity.AuditActionAccepted, s.audits[1].Action)
}

func TestSubmit_AuditoriaFallidaRevierteLaTransicion(t *testing.T) {
	s := newFakeStore()
	seedFinalizedInvoice(s)
	s.auditErr = errors.New("auditoría no disponible")
	o := newSubmitFixture(s)

	cp := *s.invoices["inv-1"]
	cp.SubmissionStatus = entity.SubmissionStatusAccepted

	err := o.persistOutcome(context.Background(), &cp, testActor, fixedClock(), entity.AuditActionAccepted)
	require.Error(t, err)

	// El estado no cambió y no quedó auditoría parcial: el envío es reintentable
	assert.Equal(t, entity.SubmissionStatusPending, s.invoices["inv-1"].SubmissionStatus)
	assert.Empty(t, s.audits)
}

func TestSubmit_RechazoSinVeredictoNoDuplicaAuditoria(t *testing.T) {
	s := newFakeStore()
	seedFinalizedInvoice(s)
	o := newSubmitFixture(s)

	cp := *s.invoices["inv-1"]
	cp.SubmissionStatus = entity.SubmissionStatusError

	err := o.persistOutcome(context.Background(), &cp, testActor, fixedClock(), "")
	require.NoError(t, err)

	assert.Equal(t, entity.SubmissionStatusError, s.invoices["inv-1"].SubmissionStatus)
	require.Len(t, s.audits, 1)
	assert.Equal(t, entity.AuditActionSubmitted, s.audits[0].Action)
}
