package accounts

import (
	"context"
	"time"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
	"github.com/entrenia/entrenia-core/internal/monitoring"
	"github.com/entrenia/entrenia-core/pkg/logger"
)

// PurgeWorker promueve los borrados agendados a borrados físicos. Un único
// barrido concurrente recorre los usuarios vencidos en secuencia; cada usuario
// se purga en su propia transacción, así un fallo aísla a ese usuario y el
// resto del barrido continúa.
type PurgeWorker struct {
	txRunner PurgeTxRunner
	userRepo repository.UserRepository
	log      *logger.Logger
}

// NewPurgeWorker construye el worker.
func NewPurgeWorker(txRunner PurgeTxRunner, userRepo repository.UserRepository, lg *logger.Logger) *PurgeWorker {
	if lg == nil {
		lg = logger.Nop()
	}
	return &PurgeWorker{txRunner: txRunner, userRepo: userRepo, log: lg}
}

// Start ejecuta un barrido inmediato y después uno por intervalo hasta que el
// contexto se cancele.
func (w *PurgeWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.runSweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *PurgeWorker) runSweep(ctx context.Context) {
	purged, errs := w.SweepDue(ctx, time.Now())
	if purged > 0 || len(errs) > 0 {
		w.log.Info().Int("purged", purged).Int("errors", len(errs)).Msg("barrido de purga completado")
	}
}

// SweepDue purga todos los usuarios con la ventana vencida a la fecha dada.
// Devuelve cuántos se purgaron y los errores por usuario; un fallo deja a ese
// usuario en pending_deletion para el siguiente barrido.
func (w *PurgeWorker) SweepDue(ctx context.Context, now time.Time) (int, []error) {
	due, err := w.userRepo.ListDueForPurge(ctx, now)
	if err != nil {
		return 0, []error{err}
	}

	purged := 0
	var errs []error
	for _, user := range due {
		if err := w.purgeUser(ctx, user); err != nil {
			monitoring.PurgeSweepErrors.Inc()
			w.log.Error().Err(err).Str("user_id", user.ID).Msg("purga fallida, se reintenta en el siguiente barrido")
			errs = append(errs, err)
			continue
		}
		purged++
		monitoring.PurgedUsersTotal.Inc()
	}
	return purged, errs
}

// purgeUser ejecuta el protocolo de borrado completo de un usuario en una
// transacción. El recuento de filas por tabla queda en el log estructurado,
// que vive fuera del grafo purgado.
func (w *PurgeWorker) purgeUser(ctx context.Context, user *entity.User) error {
	rowsByTable := make(map[string]int64)

	err := w.txRunner.RunPurge(ctx, func(
		_ repository.UserRepository,
		purgeRepo repository.PurgeRepository,
	) error {
		// 1-2) Dependientes de los clientes del usuario, después los clientes
		clientIDs, err := purgeRepo.ClientsOfUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if err := w.deleteClientBranch(ctx, purgeRepo, clientIDs, rowsByTable); err != nil {
			return err
		}

		// 3) Dependientes directos del usuario
		for _, edge := range UserEdges {
			n, err := purgeRepo.DeleteWhereIn(ctx, edge.Table, edge.Column, []string{user.ID})
			if err != nil {
				return err
			}
			rowsByTable[edge.Table] += n
		}

		// 4) Workspaces propiedad del usuario: rama completa por workspace
		workspaces, err := purgeRepo.WorkspacesOwnedBy(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, ws := range workspaces {
			wsClients, err := purgeRepo.ClientsOfWorkspace(ctx, ws.ID)
			if err != nil {
				return err
			}
			if err := w.deleteClientBranch(ctx, purgeRepo, wsClients, rowsByTable); err != nil {
				return err
			}
			for _, edge := range WorkspaceEdges {
				n, err := purgeRepo.DeleteWhereIn(ctx, edge.Table, edge.Column, []string{ws.ID})
				if err != nil {
					return err
				}
				rowsByTable[edge.Table] += n
			}
			if err := purgeRepo.DeleteWorkspace(ctx, ws.ID); err != nil {
				return err
			}
			rowsByTable["workspaces"]++
		}

		// 5) La fila del usuario, al final
		if err := purgeRepo.DeleteUser(ctx, user.ID); err != nil {
			return err
		}
		rowsByTable["users"]++
		return nil
	})
	if err != nil {
		return err
	}

	ev := w.log.Info().Str("user_id", user.ID)
	for table, n := range rowsByTable {
		if n > 0 {
			monitoring.PurgedRowsTotal.WithLabelValues(table).Add(float64(n))
			ev = ev.Int64("rows_"+table, n)
		}
	}
	ev.Msg("usuario purgado")
	return nil
}

func (w *PurgeWorker) deleteClientBranch(ctx context.Context, purgeRepo repository.PurgeRepository, clientIDs []string, rowsByTable map[string]int64) error {
	if len(clientIDs) == 0 {
		return nil
	}
	for _, edge := range ClientEdges {
		n, err := purgeRepo.DeleteWhereIn(ctx, edge.Table, edge.Column, clientIDs)
		if err != nil {
			return err
		}
		rowsByTable[edge.Table] += n
	}
	n, err := purgeRepo.DeleteWhereIn(ctx, "clients", "id", clientIDs)
	if err != nil {
		return err
	}
	rowsByTable["clients"] += n
	return nil
}
