package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound         = errors.New("recurso no encontrado")
	ErrUserNotFound     = errors.New("usuario no encontrado")
	ErrInvalidInput     = errors.New("entrada inválida")
	ErrConflict         = errors.New("conflicto de concurrencia; reintentar")
	ErrStateError       = errors.New("operación no permitida en el estado actual")
	ErrPermissionDenied = errors.New("credenciales inválidas")
	ErrSettingsMissing  = errors.New("configuración de facturación no encontrada")

	// Certificados / envío a la AEAT.
	ErrCertMissing = errors.New("certificado no configurado para el workspace")
	ErrCertExpired = errors.New("certificado expirado")
	ErrCertLocked  = errors.New("certificado bloqueado: descifrado o AAD inválidos")
	ErrTransport   = errors.New("fallo de transporte al enviar a la AEAT")
)

// RegulatorRejectedError: la AEAT rechazó el registro con un código concreto.
type RegulatorRejectedError struct {
	Code    string
	Message string
}

func (e *RegulatorRejectedError) Error() string {
	return fmt.Sprintf("registro rechazado por la AEAT [%s]: %s", e.Code, e.Message)
}
