package accounts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

// Dobles en memoria. El almacén de purga modela cada tabla dependiente como
// filas (id de fila -> valor de la FK) para poder afirmar que la cascada no
// deja nada atrás.

type fakeRow struct {
	fks map[string]string // columna FK -> id referenciado
}

type fakeAccountStore struct {
	users      map[string]*entity.User
	clients    map[string]*entity.Client
	workspaces map[string]*entity.Workspace
	tables     map[string][]fakeRow // tabla -> filas vivas
	failTable  string               // si coincide, DeleteWhereIn falla (simula FK NO ACTION)
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		users:      make(map[string]*entity.User),
		clients:    make(map[string]*entity.Client),
		workspaces: make(map[string]*entity.Workspace),
		tables:     make(map[string][]fakeRow),
	}
}

func (s *fakeAccountStore) addRow(table string, fks map[string]string) {
	s.tables[table] = append(s.tables[table], fakeRow{fks: fks})
}

func (s *fakeAccountStore) rowsReferencing(id string) map[string]int {
	out := make(map[string]int)
	for table, rows := range s.tables {
		for _, row := range rows {
			for _, ref := range row.fks {
				if ref == id {
					out[table]++
				}
			}
		}
	}
	return out
}

type fakeUserRepo struct{ s *fakeAccountStore }

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) UpdateDeletionState(_ context.Context, u *entity.User) error {
	stored, ok := r.s.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	stored.IsActive = u.IsActive
	stored.ScheduledDeletionAt = u.ScheduledDeletionAt
	stored.DeletionReason = u.DeletionReason
	stored.UpdatedAt = u.UpdatedAt
	return nil
}

func (r *fakeUserRepo) ListDueForPurge(_ context.Context, now time.Time) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range r.s.users {
		if u.ScheduledDeletionAt != nil && !u.ScheduledDeletionAt.After(now) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledDeletionAt.Before(*out[j].ScheduledDeletionAt)
	})
	return out, nil
}

type fakePurgeRepo struct{ s *fakeAccountStore }

func (r *fakePurgeRepo) DeleteWhereIn(_ context.Context, table, column string, ids []string) (int64, error) {
	if table == r.s.failTable {
		return 0, fmt.Errorf("violación de FK simulada en %s", table)
	}
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}
	if table == "clients" && column == "id" {
		var n int64
		for _, id := range ids {
			if _, ok := r.s.clients[id]; ok {
				delete(r.s.clients, id)
				n++
			}
		}
		return n, nil
	}
	var kept []fakeRow
	var n int64
	for _, row := range r.s.tables[table] {
		if inSet[row.fks[column]] {
			n++
			continue
		}
		kept = append(kept, row)
	}
	r.s.tables[table] = kept
	return n, nil
}

func (r *fakePurgeRepo) ClientsOfUser(_ context.Context, userID string) ([]string, error) {
	var out []string
	for id, c := range r.s.clients {
		if c.UserID == userID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakePurgeRepo) ClientsOfWorkspace(_ context.Context, workspaceID string) ([]string, error) {
	var out []string
	for id, c := range r.s.clients {
		if c.WorkspaceID == workspaceID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakePurgeRepo) WorkspacesOwnedBy(_ context.Context, userID string) ([]*entity.Workspace, error) {
	var out []*entity.Workspace
	for _, ws := range r.s.workspaces {
		if ws.OwnerID == userID {
			cp := *ws
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePurgeRepo) DeleteWorkspace(_ context.Context, workspaceID string) error {
	delete(r.s.workspaces, workspaceID)
	return nil
}

func (r *fakePurgeRepo) DeleteUser(_ context.Context, userID string) error {
	delete(r.s.users, userID)
	return nil
}

// fakePurgeTxRunner simula la atomicidad restaurando un snapshot si fn falla.
type fakePurgeTxRunner struct{ s *fakeAccountStore }

func (t *fakePurgeTxRunner) RunPurge(_ context.Context, fn func(
	repository.UserRepository,
	repository.PurgeRepository,
) error) error {
	snapshot := t.snapshot()
	err := fn(&fakeUserRepo{s: t.s}, &fakePurgeRepo{s: t.s})
	if err != nil {
		t.restore(snapshot)
	}
	return err
}

func (t *fakePurgeTxRunner) snapshot() *fakeAccountStore {
	cp := newFakeAccountStore()
	cp.failTable = t.s.failTable
	for id, u := range t.s.users {
		u2 := *u
		cp.users[id] = &u2
	}
	for id, c := range t.s.clients {
		c2 := *c
		cp.clients[id] = &c2
	}
	for id, ws := range t.s.workspaces {
		ws2 := *ws
		cp.workspaces[id] = &ws2
	}
	for table, rows := range t.s.tables {
		cp.tables[table] = append([]fakeRow(nil), rows...)
	}
	return cp
}

func (t *fakePurgeTxRunner) restore(snap *fakeAccountStore) {
	t.s.users = snap.users
	t.s.clients = snap.clients
	t.s.workspaces = snap.workspaces
	t.s.tables = snap.tables
}
