package entity

import "time"

// User representa un usuario del sistema (profesional o cliente final con cuenta).
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt, nunca en claro después de persistir
	Name         string
	IsActive     bool

	// Borrado con ventana de recuperación (GDPR). scheduled_deletion_at no
	// nulo implica pending_deletion; al vencer, la purga elimina la fila.
	ScheduledDeletionAt *time.Time
	DeletionReason      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPendingDeletion indica si la cuenta está en ventana de recuperación.
func (u *User) IsPendingDeletion() bool {
	return u.ScheduledDeletionAt != nil
}

// Client es el snapshot mínimo de un cliente usado por la purga en cascada:
// la purga borra primero las filas que referencian a cada cliente del usuario.
type Client struct {
	ID          string
	WorkspaceID string
	UserID      string // usuario que lo creó o al que pertenece
	Name        string
	CreatedAt   time.Time
}

// Workspace es la unidad de aislamiento multi-tenant. Si su propietario se
// purga con delete_workspace, cae todo el grafo del workspace.
type Workspace struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}
