package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/entrenia/entrenia-core/internal/application/billing"
	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
)

// SettingsHandler maneja la configuración de facturación del workspace (protegido, solo owner).
type SettingsHandler struct {
	uc *billing.SettingsUseCase
}

// NewSettingsHandler construye el handler.
func NewSettingsHandler(uc *billing.SettingsUseCase) *SettingsHandler {
	return &SettingsHandler{uc: uc}
}

// Get devuelve la configuración de facturación.
// GET /api/billing/settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	settings, err := h.uc.Get(c.Context(), workspaceID)
	if err != nil {
		if errors.Is(err, domain.ErrSettingsMissing) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "SETTINGS_MISSING", Message: "el workspace no tiene configuración de facturación"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(settings)
}

// Save crea o actualiza la configuración de facturación.
// PUT /api/billing/settings
func (h *SettingsHandler) Save(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.InvoiceSettingsRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	settings, err := h.uc.Save(c.Context(), workspaceID, in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrStateError) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "STATE", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(settings)
}

// UploadCertificate carga el certificado del emisor (PKCS#12 en Base64).
// POST /api/billing/settings/certificate
func (h *SettingsHandler) UploadCertificate(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CertificateUploadRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	meta, err := h.uc.UploadCertificate(c.Context(), workspaceID, in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrSettingsMissing) {
			return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{Code: "SETTINGS_MISSING", Message: "configure la facturación antes de cargar el certificado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(meta)
}

// Certificate devuelve los metadatos del certificado (nunca el material de llave).
// GET /api/billing/settings/certificate
func (h *SettingsHandler) Certificate(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	if workspaceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	meta, err := h.uc.CertificateMetadata(c.Context(), workspaceID)
	if err != nil {
		if errors.Is(err, domain.ErrCertMissing) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "CERT_MISSING", Message: "el workspace no tiene certificado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(meta)
}
