package repository

import (
	"context"
	"time"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

// UserRepository es el puerto de persistencia de usuarios para el ciclo de vida
// de la cuenta (borrado con ventana de recuperación).
type UserRepository interface {
	// GetByID obtiene un usuario; nil si no existe o ya fue purgado.
	GetByID(ctx context.Context, id string) (*entity.User, error)

	// UpdateDeletionState persiste is_active, scheduled_deletion_at
	// y deletion_reason.
	UpdateDeletionState(ctx context.Context, u *entity.User) error

	// ListDueForPurge lista usuarios con scheduled_deletion_at <= now,
	// en orden de vencimiento.
	ListDueForPurge(ctx context.Context, now time.Time) ([]*entity.User, error)
}
