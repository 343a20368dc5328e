package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo implementación de AuditRepository. La tabla es append-only:
// un trigger del esquema rechaza UPDATE y DELETE.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Append inserta un registro de auditoría.
func (r *AuditRepo) Append(ctx context.Context, log *entity.InvoiceAuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoice_audit_logs (id, invoice_id, workspace_id, action,
			old_snapshot, new_snapshot, actor_id, actor_label, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		log.ID, log.InvoiceID, log.WorkspaceID, log.Action,
		log.OldSnapshot, log.NewSnapshot,
		nullIfEmpty(log.ActorID), nullIfEmpty(log.ActorLabel), nullIfEmpty(log.IP),
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListByInvoice devuelve los registros de una factura en orden de commit.
func (r *AuditRepo) ListByInvoice(ctx context.Context, workspaceID, invoiceID string) ([]*entity.InvoiceAuditLog, error) {
	query := `
		SELECT id, invoice_id, workspace_id, action, old_snapshot, new_snapshot,
		       actor_id, actor_label, ip, created_at
		FROM invoice_audit_logs
		WHERE workspace_id = $1 AND invoice_id = $2
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, workspaceID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceAuditLog
	for rows.Next() {
		var l entity.InvoiceAuditLog
		var actorID, actorLabel, ip *string
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.WorkspaceID, &l.Action,
			&l.OldSnapshot, &l.NewSnapshot, &actorID, &actorLabel, &ip, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		l.ActorID = derefStr(actorID)
		l.ActorLabel = derefStr(actorLabel)
		l.IP = derefStr(ip)
		list = append(list, &l)
	}
	return list, rows.Err()
}
