package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implementación de UserRepository (usable con pool o tx).
type UserRepo struct {
	q Querier
}

// NewUserRepository construye el adaptador. Pasar pool o tx (Querier).
func NewUserRepository(q Querier) *UserRepo {
	return &UserRepo{q: q}
}

// GetByID obtiene un usuario; nil si no existe o ya fue purgado.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `
		SELECT id, email, password_hash, name, is_active,
		       scheduled_deletion_at, deletion_reason,
		       created_at, updated_at
		FROM users WHERE id = $1`
	var u entity.User
	var deletionReason *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.IsActive,
		&u.ScheduledDeletionAt, &deletionReason,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.DeletionReason = derefStr(deletionReason)
	return &u, nil
}

// UpdateDeletionState persiste is_active, scheduled_deletion_at y deletion_reason.
func (r *UserRepo) UpdateDeletionState(ctx context.Context, u *entity.User) error {
	query := `
		UPDATE users
		SET is_active = $2, scheduled_deletion_at = $3, deletion_reason = $4,
		    updated_at = $5
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		u.ID, u.IsActive, u.ScheduledDeletionAt, nullIfEmpty(u.DeletionReason),
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update deletion state: %w", err)
	}
	return nil
}

// ListDueForPurge lista usuarios con la ventana de recuperación vencida,
// en orden de vencimiento.
func (r *UserRepo) ListDueForPurge(ctx context.Context, now time.Time) ([]*entity.User, error) {
	query := `
		SELECT id, email, password_hash, name, is_active,
		       scheduled_deletion_at, deletion_reason,
		       created_at, updated_at
		FROM users
		WHERE scheduled_deletion_at IS NOT NULL AND scheduled_deletion_at <= $1
		ORDER BY scheduled_deletion_at`
	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due for purge: %w", err)
	}
	defer rows.Close()
	var list []*entity.User
	for rows.Next() {
		var u entity.User
		var deletionReason *string
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.IsActive,
			&u.ScheduledDeletionAt, &deletionReason,
			&u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.DeletionReason = derefStr(deletionReason)
		list = append(list, &u)
	}
	return list, rows.Err()
}
