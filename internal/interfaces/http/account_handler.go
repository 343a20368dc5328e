package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/entrenia/entrenia-core/internal/application/accounts"
	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
)

// AccountHandler maneja el ciclo de vida de la cuenta del usuario autenticado.
type AccountHandler struct {
	uc *accounts.DeletionUseCase
}

// NewAccountHandler construye el handler.
func NewAccountHandler(uc *accounts.DeletionUseCase) *AccountHandler {
	return &AccountHandler{uc: uc}
}

// RequestDeletion programa el borrado de la cuenta tras la ventana de recuperación.
// Requiere re-autenticación con contraseña.
// POST /api/account/deletion
func (h *AccountHandler) RequestDeletion(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.DeleteAccountRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.RequestDeletion(c.Context(), userID, in)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "usuario no encontrado"})
		}
		if errors.Is(err, domain.ErrPermissionDenied) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "INVALID_PASSWORD", Message: "contraseña incorrecta"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// CancelDeletion revierte el borrado pendiente dentro de la ventana de recuperación.
// POST /api/account/deletion/cancel
func (h *AccountHandler) CancelDeletion(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.DeleteAccountRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.CancelDeletion(c.Context(), userID, in.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "usuario no encontrado"})
		}
		if errors.Is(err, domain.ErrPermissionDenied) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "INVALID_PASSWORD", Message: "contraseña incorrecta"})
		}
		if errors.Is(err, domain.ErrStateError) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "STATE", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(resp)
}
