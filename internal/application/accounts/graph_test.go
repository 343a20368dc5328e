package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_SinAristasDuplicadas(t *testing.T) {
	seen := make(map[Edge]bool)
	for _, edges := range [][]Edge{ClientEdges, UserEdges, WorkspaceEdges} {
		for _, e := range edges {
			assert.NotEmpty(t, e.Table)
			assert.NotEmpty(t, e.Column)
			assert.False(t, seen[e], "arista duplicada: %s.%s", e.Table, e.Column)
			seen[e] = true
		}
	}
}

func TestGraph_CubreLasTablasDelProtocolo(t *testing.T) {
	// Toda tabla con FK NO ACTION hacia users, clients o workspaces debe estar
	// en el grafo; si falta una, el DELETE del padre falla en producción.
	required := []string{
		"reminder_settings", "referral_conversions", "live_class_registrations",
		"live_classes", "instructors", "course_reviews", "course_enrollments",
		"challenge_participants", "certificates", "ai_suggestions",
		"ai_generations", "affiliates", "supplement_favorites",
		"food_favorites", "supplements",
		"invoice_audit_logs", "invoices",
	}
	covered := make(map[string]bool)
	for _, edges := range [][]Edge{ClientEdges, UserEdges, WorkspaceEdges} {
		for _, e := range edges {
			covered[e.Table] = true
		}
	}
	for _, table := range required {
		assert.True(t, covered[table], "tabla sin cubrir: %s", table)
	}
}

func TestGraph_AuditoriaCaeAntesQueLasFacturas(t *testing.T) {
	// invoice_audit_logs referencia a invoices con FK NO ACTION: si las
	// facturas se borran primero, la FK revienta el DELETE.
	idx := func(table string) int {
		for i, e := range WorkspaceEdges {
			if e.Table == table {
				return i
			}
		}
		return -1
	}
	auditPos, invoicesPos := idx("invoice_audit_logs"), idx("invoices")
	require.NotEqual(t, -1, auditPos)
	require.NotEqual(t, -1, invoicesPos)
	assert.Less(t, auditPos, invoicesPos)
}

func TestGraph_AffiliatesTieneAmbasFKsDeUsuario(t *testing.T) {
	var cols []string
	for _, e := range UserEdges {
		if e.Table == "affiliates" {
			cols = append(cols, e.Column)
		}
	}
	assert.ElementsMatch(t, []string{"user_id", "approved_by"}, cols)
}
