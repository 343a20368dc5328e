package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/entrenia/entrenia-core/internal/application/accounts"
	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

var _ repository.PurgeRepository = (*PurgeRepo)(nil)

// allowedEdges acota los pares (tabla, columna) admisibles a los declarados en
// el grafo de dependencias, más el borrado de clientes por id. Los
// identificadores nunca llegan del caller como texto libre.
var allowedEdges = func() map[accounts.Edge]bool {
	m := map[accounts.Edge]bool{
		{Table: "clients", Column: "id"}: true,
	}
	for _, group := range [][]accounts.Edge{accounts.ClientEdges, accounts.UserEdges, accounts.WorkspaceEdges} {
		for _, e := range group {
			m[e] = true
		}
	}
	return m
}()

// PurgeRepo implementación de PurgeRepository (usable con pool o tx,
// en la práctica siempre dentro de la transacción de purga).
type PurgeRepo struct {
	q Querier
}

// NewPurgeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPurgeRepository(q Querier) *PurgeRepo {
	return &PurgeRepo{q: q}
}

// DeleteWhereIn ejecuta DELETE FROM {table} WHERE {column} = ANY(ids).
// Los identificadores se interpolan (no hay placeholders para identificadores
// en PostgreSQL) tras validarlos contra el grafo.
func (r *PurgeRepo) DeleteWhereIn(ctx context.Context, table, column string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if !allowedEdges[accounts.Edge{Table: table, Column: column}] {
		return 0, fmt.Errorf("%w: arista de purga desconocida %s.%s", domain.ErrInvalidInput, table, column)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`,
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{column}.Sanitize())
	tag, err := r.q.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// ClientsOfUser devuelve los IDs de clientes ligados al usuario.
func (r *PurgeRepo) ClientsOfUser(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM clients WHERE user_id = $1 ORDER BY id`, userID)
}

// ClientsOfWorkspace devuelve los IDs de clientes de un workspace.
func (r *PurgeRepo) ClientsOfWorkspace(ctx context.Context, workspaceID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM clients WHERE workspace_id = $1 ORDER BY id`, workspaceID)
}

// WorkspacesOwnedBy devuelve los workspaces cuyo propietario es el usuario.
func (r *PurgeRepo) WorkspacesOwnedBy(ctx context.Context, userID string) ([]*entity.Workspace, error) {
	query := `SELECT id, owner_id, name, created_at FROM workspaces WHERE owner_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned workspaces: %w", err)
	}
	defer rows.Close()
	var list []*entity.Workspace
	for rows.Next() {
		var w entity.Workspace
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Name, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		list = append(list, &w)
	}
	return list, rows.Err()
}

// DeleteWorkspace borra la fila del workspace.
func (r *PurgeRepo) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, workspaceID); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

// DeleteUser borra la fila del usuario (último paso de la purga).
func (r *PurgeRepo) DeleteUser(ctx context.Context, userID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (r *PurgeRepo) listIDs(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
