package repository

import (
	"context"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

// PurgeRepository es el puerto de la purga en cascada. Las operaciones de
// borrado se dirigen por el grafo de dependencias (lista ordenada de
// (tabla, columna FK)); las tablas admisibles están acotadas por ese grafo,
// nunca por entrada del caller.
type PurgeRepository interface {
	// DeleteWhereIn ejecuta DELETE FROM {table} WHERE {column} = ANY(ids)
	// y devuelve las filas borradas. table y column provienen del grafo.
	DeleteWhereIn(ctx context.Context, table, column string, ids []string) (int64, error)

	// ClientsOfUser devuelve los IDs de clientes creados por / ligados al usuario.
	ClientsOfUser(ctx context.Context, userID string) ([]string, error)

	// ClientsOfWorkspace devuelve los IDs de clientes de un workspace.
	ClientsOfWorkspace(ctx context.Context, workspaceID string) ([]string, error)

	// WorkspacesOwnedBy devuelve los workspaces cuyo propietario es el usuario.
	WorkspacesOwnedBy(ctx context.Context, userID string) ([]*entity.Workspace, error)

	// DeleteWorkspace borra la fila del workspace (cascada del resto de ramas).
	DeleteWorkspace(ctx context.Context, workspaceID string) error

	// DeleteUser borra la fila del usuario (último paso de la purga).
	DeleteUser(ctx context.Context, userID string) error
}
