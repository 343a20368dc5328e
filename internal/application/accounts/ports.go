package accounts

import (
	"context"

	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

// PurgeTxRunner ejecuta la purga de un usuario dentro de una única
// transacción: si cualquier paso del grafo falla, todo vuelve atrás y el
// usuario sigue en pending_deletion para el siguiente barrido.
type PurgeTxRunner interface {
	RunPurge(ctx context.Context, fn func(
		userRepo repository.UserRepository,
		purgeRepo repository.PurgeRepository,
	) error) error
}
