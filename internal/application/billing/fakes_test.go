package billing

import (
	"context"
	"sort"
	"time"

	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

// Dobles en memoria de los puertos de persistencia. El runner simula la
// atomicidad restaurando un snapshot del almacén si el callback falla.

type fakeStore struct {
	invoices map[string]*entity.Invoice
	lines    map[string][]*entity.InvoiceLine
	settings map[string]*entity.InvoiceSettings
	certs    map[string]*entity.Certificate
	audits   []*entity.InvoiceAuditLog
	auditErr error // si no es nil, Append falla
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		invoices: make(map[string]*entity.Invoice),
		lines:    make(map[string][]*entity.InvoiceLine),
		settings: make(map[string]*entity.InvoiceSettings),
		certs:    make(map[string]*entity.Certificate),
	}
}

type fakeInvoiceRepo struct{ s *fakeStore }

func (r *fakeInvoiceRepo) Create(_ context.Context, inv *entity.Invoice, lines []*entity.InvoiceLine) error {
	cp := *inv
	r.s.invoices[inv.ID] = &cp
	r.s.lines[inv.ID] = lines
	return nil
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, workspaceID, id string) (*entity.Invoice, error) {
	inv, ok := r.s.invoices[id]
	if !ok || inv.WorkspaceID != workspaceID {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) GetLines(_ context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	return r.s.lines[invoiceID], nil
}

func (r *fakeInvoiceRepo) LastFinalized(_ context.Context, workspaceID, series string) (*entity.Invoice, error) {
	var last *entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.WorkspaceID != workspaceID || inv.Series != series || !inv.IsFinalized() {
			continue
		}
		if last == nil || inv.Number > last.Number {
			last = inv
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (r *fakeInvoiceRepo) Finalize(_ context.Context, inv *entity.Invoice) error {
	stored, ok := r.s.invoices[inv.ID]
	if !ok || stored.Status != entity.InvoiceStatusDraft {
		return domain.ErrStateError
	}
	cp := *inv
	r.s.invoices[inv.ID] = &cp
	return nil
}

func (r *fakeInvoiceRepo) UpdateSubmission(_ context.Context, inv *entity.Invoice) error {
	stored, ok := r.s.invoices[inv.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.SubmissionStatus = inv.SubmissionStatus
	stored.SubmissionResponse = inv.SubmissionResponse
	stored.SubmittedAt = inv.SubmittedAt
	stored.UpdatedAt = inv.UpdatedAt
	return nil
}

func (r *fakeInvoiceRepo) ListFinalized(_ context.Context, workspaceID, series string) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.WorkspaceID == workspaceID && inv.Series == series && inv.IsFinalized() {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

type fakeSettingsRepo struct{ s *fakeStore }

func (r *fakeSettingsRepo) Get(_ context.Context, workspaceID string) (*entity.InvoiceSettings, error) {
	st, ok := r.s.settings[workspaceID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (r *fakeSettingsRepo) Save(_ context.Context, st *entity.InvoiceSettings) error {
	existing, ok := r.s.settings[st.WorkspaceID]
	cp := *st
	if ok {
		cp.NextNumber = existing.NextNumber
		cp.RectificativeNextNumber = existing.RectificativeNextNumber
	}
	r.s.settings[st.WorkspaceID] = &cp
	return nil
}

func (r *fakeSettingsRepo) AllocateNumber(_ context.Context, workspaceID, series string) (int, error) {
	st, ok := r.s.settings[workspaceID]
	if !ok {
		return 0, domain.ErrSettingsMissing
	}
	if series == st.RectificativePrefix {
		n := st.RectificativeNextNumber
		st.RectificativeNextNumber++
		return n, nil
	}
	n := st.NextNumber
	st.NextNumber++
	return n, nil
}

func (r *fakeSettingsRepo) StoreCertificate(_ context.Context, cert *entity.Certificate) error {
	cp := *cert
	r.s.certs[cert.WorkspaceID] = &cp
	return nil
}

func (r *fakeSettingsRepo) GetCertificate(_ context.Context, workspaceID string) (*entity.Certificate, error) {
	cert, ok := r.s.certs[workspaceID]
	if !ok {
		return nil, nil
	}
	cp := *cert
	return &cp, nil
}

type fakeAuditRepo struct{ s *fakeStore }

func (r *fakeAuditRepo) Append(_ context.Context, log *entity.InvoiceAuditLog) error {
	if r.s.auditErr != nil {
		return r.s.auditErr
	}
	r.s.audits = append(r.s.audits, log)
	return nil
}

func (r *fakeAuditRepo) ListByInvoice(_ context.Context, workspaceID, invoiceID string) ([]*entity.InvoiceAuditLog, error) {
	var out []*entity.InvoiceAuditLog
	for _, a := range r.s.audits {
		if a.WorkspaceID == workspaceID && a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeTxRunner simula la atomicidad restaurando un snapshot si fn falla.
type fakeTxRunner struct{ s *fakeStore }

func (t *fakeTxRunner) RunInvoicing(_ context.Context, fn func(
	repository.InvoiceRepository,
	repository.SettingsRepository,
	repository.AuditRepository,
) error) error {
	snap := t.snapshot()
	err := fn(&fakeInvoiceRepo{s: t.s}, &fakeSettingsRepo{s: t.s}, &fakeAuditRepo{s: t.s})
	if err != nil {
		t.restore(snap)
	}
	return err
}

func (t *fakeTxRunner) snapshot() *fakeStore {
	cp := newFakeStore()
	cp.auditErr = t.s.auditErr
	for id, inv := range t.s.invoices {
		c := *inv
		cp.invoices[id] = &c
	}
	for id, ls := range t.s.lines {
		cp.lines[id] = append([]*entity.InvoiceLine(nil), ls...)
	}
	for id, st := range t.s.settings {
		c := *st
		cp.settings[id] = &c
	}
	for id, cert := range t.s.certs {
		c := *cert
		cp.certs[id] = &c
	}
	cp.audits = append([]*entity.InvoiceAuditLog(nil), t.s.audits...)
	return cp
}

func (t *fakeTxRunner) restore(snap *fakeStore) {
	t.s.invoices = snap.invoices
	t.s.lines = snap.lines
	t.s.settings = snap.settings
	t.s.certs = snap.certs
	t.s.audits = snap.audits
}

// seedSettings crea una configuración mínima lista para finalizar.
func seedSettings(s *fakeStore, workspaceID string, submissionEnabled bool) {
	s.settings[workspaceID] = &entity.InvoiceSettings{
		WorkspaceID:             workspaceID,
		IssuerTaxID:             "B12345678",
		IssuerLegalName:         "Entrenia Fitness SL",
		SeriesPrefix:            "F",
		NextNumber:              1,
		RectificativePrefix:     "R",
		RectificativeNextNumber: 1,
		SubmissionEnabled:       submissionEnabled,
		SubmissionEnvironment:   entity.SubmissionEnvTest,
		CreatedAt:               time.Now(),
		UpdatedAt:               time.Now(),
	}
}
