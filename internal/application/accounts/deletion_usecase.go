package accounts

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

// DeletionUseCase gestiona el borrado de cuenta con ventana de recuperación:
// la solicitud desactiva la cuenta y agenda la purga; dentro de la ventana el
// usuario puede cancelar y volver a activo. Ambas operaciones exigen
// re-autenticación con contraseña.
type DeletionUseCase struct {
	userRepo       repository.UserRepository
	recoveryWindow time.Duration
	now            func() time.Time
}

// NewDeletionUseCase construye el caso de uso. nowFn permite fijar el reloj
// en tests; con nil usa time.Now.
func NewDeletionUseCase(userRepo repository.UserRepository, recoveryWindow time.Duration, nowFn func() time.Time) *DeletionUseCase {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &DeletionUseCase{userRepo: userRepo, recoveryWindow: recoveryWindow, now: nowFn}
}

// RequestDeletion pasa la cuenta a pending_deletion. Idempotente: si ya hay
// una purga agendada devuelve la fecha existente sin moverla.
func (uc *DeletionUseCase) RequestDeletion(ctx context.Context, userID string, in dto.DeleteAccountRequest) (*dto.AccountDeletionResponse, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrPermissionDenied
	}

	if user.IsPendingDeletion() {
		return &dto.AccountDeletionResponse{
			Status:              "pending_deletion",
			ScheduledDeletionAt: user.ScheduledDeletionAt.Format(time.RFC3339),
		}, nil
	}

	now := uc.now()
	scheduled := now.Add(uc.recoveryWindow)
	user.IsActive = false
	user.ScheduledDeletionAt = &scheduled
	user.DeletionReason = in.Reason
	user.UpdatedAt = now
	if err := uc.userRepo.UpdateDeletionState(ctx, user); err != nil {
		return nil, err
	}

	return &dto.AccountDeletionResponse{
		Status:              "pending_deletion",
		ScheduledDeletionAt: scheduled.Format(time.RFC3339),
	}, nil
}

// CancelDeletion vuelve la cuenta a activo si la ventana sigue abierta.
func (uc *DeletionUseCase) CancelDeletion(ctx context.Context, userID, password string) (*dto.AccountDeletionResponse, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrPermissionDenied
	}
	if !user.IsPendingDeletion() {
		return nil, domain.ErrStateError
	}
	now := uc.now()
	// Ventana vencida: la purga ya es inevitable, el worker la ejecutará
	if !now.Before(*user.ScheduledDeletionAt) {
		return nil, domain.ErrStateError
	}

	user.IsActive = true
	user.ScheduledDeletionAt = nil
	user.DeletionReason = ""
	user.UpdatedAt = now
	if err := uc.userRepo.UpdateDeletionState(ctx, user); err != nil {
		return nil, err
	}
	return &dto.AccountDeletionResponse{Status: "active"}, nil
}
