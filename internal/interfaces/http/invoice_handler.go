package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/entrenia/entrenia-core/internal/application/billing"
	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

// InvoiceHandler maneja las peticiones HTTP del registro de facturación (protegido).
type InvoiceHandler struct {
	createUC   *billing.CreateInvoiceUseCase
	finalizeUC *billing.FinalizeInvoiceUseCase
	verifyUC   *billing.VerifyChainUseCase
	submitter  *billing.SubmitOrchestrator
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(
	createUC *billing.CreateInvoiceUseCase,
	finalizeUC *billing.FinalizeInvoiceUseCase,
	verifyUC *billing.VerifyChainUseCase,
	submitter *billing.SubmitOrchestrator,
) *InvoiceHandler {
	return &InvoiceHandler{createUC: createUC, finalizeUC: finalizeUC, verifyUC: verifyUC, submitter: submitter}
}

func actorFrom(c *fiber.Ctx) billing.Actor {
	return billing.Actor{ID: GetUserID(c), Label: GetRole(c), IP: c.IP()}
}

// Create crea una factura en borrador.
// POST /api/invoices
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	invoice, err := h.createUC.CreateDraft(c.Context(), workspaceID, actorFrom(c), in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura rectificada no encontrada"})
		}
		if errors.Is(err, domain.ErrStateError) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "STATE", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// GetByID obtiene el detalle completo de una factura.
// GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	invoice, err := h.createUC.GetInvoice(c.Context(), workspaceID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(invoice)
}

// Finalize asigna número, encadena la huella y deja la factura inmutable.
// Si el envío está habilitado, dispara la remisión a la AEAT en segundo plano.
// POST /api/invoices/:id/finalize
func (h *InvoiceHandler) Finalize(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	invoice, err := h.finalizeUC.Finalize(c.Context(), workspaceID, id, actorFrom(c))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		if errors.Is(err, domain.ErrStateError) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "STATE", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrSettingsMissing) {
			return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{Code: "SETTINGS_MISSING", Message: "configure la facturación antes de finalizar"})
		}
		if errors.Is(err, domain.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "conflicto de concurrencia, reintente"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if invoice.SubmissionStatus == entity.SubmissionStatusPending {
		h.submitter.ProcessAsync(workspaceID, id)
	}
	return c.JSON(invoice)
}

// Submit reintenta el envío a la AEAT de forma síncrona.
// POST /api/invoices/:id/submit
func (h *InvoiceHandler) Submit(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	err := h.submitter.Process(c.Context(), workspaceID, id, actorFrom(c))
	if err != nil {
		var rejected *domain.RegulatorRejectedError
		if errors.As(err, &rejected) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "REJECTED", Message: rejected.Error()})
		}
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		if errors.Is(err, domain.ErrStateError) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "STATE", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrCertMissing) || errors.Is(err, domain.ErrCertExpired) || errors.Is(err, domain.ErrCertLocked) {
			return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{Code: "CERTIFICATE", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrTransport) {
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "TRANSPORT", Message: "la AEAT no respondió, se reintentará"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	invoice, err := h.createUC.GetInvoice(c.Context(), workspaceID, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(invoice)
}

// Audit devuelve la traza inmutable de una factura.
// GET /api/invoices/:id/audit
func (h *InvoiceHandler) Audit(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	logs, err := h.createUC.ListAudit(c.Context(), workspaceID, c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(logs)
}

// VerifyChain recalcula la cadena de huellas de una serie completa.
// GET /api/invoices/chain/verify?series=F
func (h *InvoiceHandler) VerifyChain(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	series := c.Query("series")
	result, err := h.verifyUC.Verify(c.Context(), workspaceID, series)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "series requerida"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(result)
}
