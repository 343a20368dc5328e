package billing

import (
	"context"
	"time"

	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
	infraverifactu "github.com/entrenia/entrenia-core/internal/infrastructure/verifactu"
	"github.com/entrenia/entrenia-core/internal/infrastructure/vault"
	"github.com/entrenia/entrenia-core/internal/monitoring"
	"github.com/entrenia/entrenia-core/pkg/logger"
	pkgverifactu "github.com/entrenia/entrenia-core/pkg/verifactu"
)

// SubmitOrchestrator orquesta el ciclo completo de envío a la AEAT:
//
//	XML del registro → Firma XAdES → SOAP mTLS → Update DB + auditoría
//
// Se ejecuta en goroutine independiente (ProcessAsync) con su propio
// context.Background() + timeout, desacoplado del ciclo HTTP. El envío nunca
// muta los campos de negocio ni de cadena de la factura: solo submission_*.
type SubmitOrchestrator struct {
	txRunner     BillingTxRunner
	invoiceRepo  repository.InvoiceRepository
	settingsRepo repository.SettingsRepository
	vault        *vault.Vault
	xmlBuilder   *infraverifactu.XMLBuilderService
	signer       pkgverifactu.Signer
	submitter    infraverifactu.Submitter
	log          *logger.Logger
	timeout      time.Duration
}

// NewSubmitOrchestrator construye el orquestador con todas sus dependencias.
func NewSubmitOrchestrator(
	txRunner BillingTxRunner,
	invoiceRepo repository.InvoiceRepository,
	settingsRepo repository.SettingsRepository,
	v *vault.Vault,
	xmlBuilder *infraverifactu.XMLBuilderService,
	signer pkgverifactu.Signer,
	submitter infraverifactu.Submitter,
	lg *logger.Logger,
	timeout time.Duration,
) *SubmitOrchestrator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if lg == nil {
		lg = logger.Nop()
	}
	return &SubmitOrchestrator{
		txRunner:     txRunner,
		invoiceRepo:  invoiceRepo,
		settingsRepo: settingsRepo,
		vault:        v,
		xmlBuilder:   xmlBuilder,
		signer:       signer,
		submitter:    submitter,
		log:          lg,
		timeout:      timeout,
	}
}

// ProcessAsync dispara el envío en una goroutine independiente.
func (o *SubmitOrchestrator) ProcessAsync(workspaceID, invoiceID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		_ = o.Process(ctx, workspaceID, invoiceID, Actor{ID: "system", Label: "system"})
	}()
}

// Process es el núcleo síncrono del orquestador. Reintentable: un fallo deja
// submission_status en "error" y el siguiente intento reenvía el mismo
// registro (mismo UUID y huella), que la AEAT deduplica.
func (o *SubmitOrchestrator) Process(ctx context.Context, workspaceID, invoiceID string, actor Actor) error {
	started := time.Now()
	lg := o.log.With().Str("invoice_id", invoiceID).Str("workspace_id", workspaceID).Logger()

	inv, err := o.invoiceRepo.GetByID(ctx, workspaceID, invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return domain.ErrNotFound
	}
	if !inv.IsFinalized() {
		return domain.ErrStateError
	}
	// Ya aceptado: no hay nada que reenviar
	if inv.SubmissionStatus == entity.SubmissionStatusAccepted {
		lg.Debug().Msg("envío ya aceptado, se omite")
		return nil
	}

	settings, err := o.settingsRepo.Get(ctx, workspaceID)
	if err != nil {
		return err
	}
	if settings == nil {
		return domain.ErrSettingsMissing
	}
	if !settings.SubmissionEnabled {
		return domain.ErrStateError
	}

	// markError deja la factura reintentable y hace log del paso que falló.
	markError := func(step string, cause error) error {
		inv.SubmissionStatus = entity.SubmissionStatusError
		inv.SubmissionResponse = cause.Error()
		inv.UpdatedAt = time.Now()
		if uerr := o.invoiceRepo.UpdateSubmission(ctx, inv); uerr != nil {
			lg.Error().Err(uerr).Msg("no se pudo persistir el estado de error de envío")
		}
		monitoring.SubmissionsTotal.WithLabelValues(infraverifactu.OutcomeError).Inc()
		lg.Error().Err(cause).Str("step", step).Msg("envío a la AEAT fallido")
		return cause
	}

	// 1) Certificado del emisor desde el vault (nunca sale en claro del handle)
	storedCert, err := o.settingsRepo.GetCertificate(ctx, workspaceID)
	if err != nil {
		return markError("cert-fetch", err)
	}
	if storedCert == nil {
		return markError("cert-fetch", domain.ErrCertMissing)
	}
	if storedCert.Expired(time.Now()) {
		return markError("cert-expired", domain.ErrCertExpired)
	}
	handle, err := o.vault.Use(storedCert, workspaceID)
	if err != nil {
		return markError("cert-unseal", err)
	}
	defer handle.Close()
	tlsCert, err := handle.TLSCertificate()
	if err != nil {
		return markError("cert-load", err)
	}

	// 2) Contexto del registro: líneas, predecesora y rectificada
	buildCtx, err := o.buildContext(ctx, inv, settings)
	if err != nil {
		return markError("context", err)
	}

	// 3) XML + firma
	xmlBytes, err := o.xmlBuilder.Build(buildCtx)
	if err != nil {
		return markError("xml-build", err)
	}
	signedXML, err := o.signer.Sign(xmlBytes, tlsCert)
	if err != nil {
		return markError("xml-sign", err)
	}

	// 4) Entrega SOAP con mTLS
	now := time.Now()
	inv.SubmittedAt = &now
	result, err := o.submitter.Submit(ctx, signedXML, settings.SubmissionEnvironment, tlsCert)
	if err != nil {
		return markError("soap", err)
	}

	// 5) Clasificar y persistir el resultado. La transición de estado y sus
	// entradas de auditoría comparten transacción: si la auditoría falla,
	// la transición se revierte y el envío queda reintentable.
	inv.SubmissionResponse = string(result.Payload)
	inv.UpdatedAt = time.Now()
	monitoring.SubmissionsTotal.WithLabelValues(result.Status).Inc()
	monitoring.SubmissionDuration.Observe(time.Since(started).Seconds())

	switch result.Status {
	case infraverifactu.OutcomeAccepted:
		inv.SubmissionStatus = entity.SubmissionStatusAccepted
		if err := o.persistOutcome(ctx, inv, actor, now, entity.AuditActionAccepted); err != nil {
			lg.Error().Err(err).Msg("no se pudo persistir la aceptación")
			return err
		}
		lg.Info().Str("csv", result.CSV).Msg("registro aceptado por la AEAT")
		return nil

	case infraverifactu.OutcomeRejected:
		inv.SubmissionStatus = entity.SubmissionStatusRejected
		if err := o.persistOutcome(ctx, inv, actor, now, entity.AuditActionRejected); err != nil {
			lg.Error().Err(err).Msg("no se pudo persistir el rechazo")
			return err
		}
		lg.Warn().Str("code", result.Code).Str("detail", result.Message).Msg("registro rechazado por la AEAT")
		return &domain.RegulatorRejectedError{Code: result.Code, Message: result.Message}
	}

	inv.SubmissionStatus = entity.SubmissionStatusError
	if err := o.persistOutcome(ctx, inv, actor, now, ""); err != nil {
		lg.Error().Err(err).Msg("no se pudo persistir el resultado del envío")
		return err
	}
	lg.Error().Str("detail", result.Message).Msg("respuesta de la AEAT no clasificable")
	return domain.ErrTransport
}

// persistOutcome publica la nueva submission_status, el registro de auditoría
// del envío y, si hay veredicto, el de la resolución, todo en una transacción.
func (o *SubmitOrchestrator) persistOutcome(ctx context.Context, inv *entity.Invoice, actor Actor, submittedAt time.Time, outcomeAction string) error {
	return o.txRunner.RunInvoicing(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.SettingsRepository,
		auditRepo repository.AuditRepository,
	) error {
		if err := invoiceRepo.UpdateSubmission(ctx, inv); err != nil {
			return err
		}
		if err := auditRepo.Append(ctx, newAuditLog(inv, entity.AuditActionSubmitted, nil, actor, submittedAt)); err != nil {
			return err
		}
		if outcomeAction == "" {
			return nil
		}
		return auditRepo.Append(ctx, newAuditLog(inv, outcomeAction, nil, actor, time.Now()))
	})
}

// buildContext arma el RegistrationContext: líneas de la factura, datos de la
// predecesora de cadena y, si aplica, de la factura rectificada.
func (o *SubmitOrchestrator) buildContext(ctx context.Context, inv *entity.Invoice, settings *entity.InvoiceSettings) (*infraverifactu.RegistrationContext, error) {
	lines, err := o.invoiceRepo.GetLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	buildCtx := &infraverifactu.RegistrationContext{
		Invoice:  inv,
		Settings: settings,
		Lines:    lines,
	}

	if inv.PrevHash != "" {
		finalized, err := o.invoiceRepo.ListFinalized(ctx, inv.WorkspaceID, inv.Series)
		if err != nil {
			return nil, err
		}
		for _, f := range finalized {
			if f.Hash == inv.PrevHash {
				buildCtx.PrevNumber = f.NumberText
				buildCtx.PrevIssueDate = f.IssueDatetime
				break
			}
		}
	}

	if inv.Type == entity.InvoiceTypeRectificative && inv.RectifiedID != "" {
		rectified, err := o.invoiceRepo.GetByID(ctx, inv.WorkspaceID, inv.RectifiedID)
		if err != nil {
			return nil, err
		}
		if rectified != nil {
			buildCtx.RectifiedNumber = rectified.NumberText
			buildCtx.RectifiedIssueDate = rectified.IssueDatetime
		}
	}
	return buildCtx, nil
}
