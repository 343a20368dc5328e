package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entrenia/entrenia-core/internal/application/accounts"
	"github.com/entrenia/entrenia-core/internal/application/billing"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

// Ensure TxRunner implements billing.BillingTxRunner and accounts.PurgeTxRunner.
var _ billing.BillingTxRunner = (*TxRunner)(nil)
var _ accounts.PurgeTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInvoicing inicia una transacción con los repos de facturación atados a la tx
// y hace Commit o Rollback. Es el marco de creación y finalización: el número
// asignado y el eslabón de la cadena se publican juntos o no se publican.
// REPEATABLE READ: la lectura de la última finalizada y el avance del contador
// ven el mismo snapshot; un fallo de serialización sale como ErrConflict y el
// caller reintenta.
func (r *TxRunner) RunInvoicing(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	settingsRepo repository.SettingsRepository,
	auditRepo repository.AuditRepository,
) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	invoiceRepo := NewInvoiceRepository(tx)
	settingsRepo := NewSettingsRepository(tx)
	auditRepo := NewAuditRepository(tx)

	if err := fn(invoiceRepo, settingsRepo, auditRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunPurge inicia una transacción con los repos de purga atados a la tx.
// Cada usuario vencido se purga en su propia transacción; un fallo revierte
// su grafo completo sin afectar a los demás.
func (r *TxRunner) RunPurge(ctx context.Context, fn func(
	userRepo repository.UserRepository,
	purgeRepo repository.PurgeRepository,
) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Marca local a la transacción: el trigger append-only de la auditoría
	// admite DELETE solo cuando este flag está activo.
	if _, err := tx.Exec(ctx, `SELECT set_config('entrenia.purge', 'on', true)`); err != nil {
		return fmt.Errorf("set purge flag: %w", err)
	}

	userRepo := NewUserRepository(tx)
	purgeRepo := NewPurgeRepository(tx)

	if err := fn(userRepo, purgeRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
