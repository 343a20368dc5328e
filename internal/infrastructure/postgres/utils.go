package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "23505")
}

// isDeadlock verifica si un error es un deadlock detectado por PostgreSQL (40P01).
// Con el bloqueo de fila del contador puede darse entre finalizaciones concurrentes;
// el caller reintenta la transacción completa.
func isDeadlock(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" // deadlock_detected
	}
	return strings.Contains(err.Error(), "40P01")
}

// isSerializationFailure verifica si un error es un fallo de serialización
// (40001). Con REPEATABLE READ dos finalizaciones concurrentes sobre la misma
// serie pueden chocar; el caller reintenta la transacción completa.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" // serialization_failure
	}
	return strings.Contains(err.Error(), "40001")
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(p *string) string {
	if p != nil {
		return *p
	}
	return ""
}
