package accounts

// Grafo de dependencias de la purga. Las FKs hacia users y clients mezclan
// ON DELETE CASCADE, SET NULL y NO ACTION; cada fila con FK NO ACTION debe
// borrarse explícitamente antes que su padre o el DELETE del padre falla.
// El orden de las listas es el orden de borrado: hojas primero.

// Edge identifica una tabla dependiente y la columna FK por la que se borra.
type Edge struct {
	Table  string
	Column string
}

// ClientEdges: tablas que referencian a un cliente. Se borran con los IDs de
// los clientes del usuario (o del workspace, en la rama de workspace).
var ClientEdges = []Edge{
	{"reminder_settings", "client_id"},
	{"referral_conversions", "client_id"},
	{"live_class_registrations", "client_id"},
	{"course_reviews", "client_id"},
	{"course_enrollments", "client_id"},
	{"challenge_participants", "client_id"},
	{"certificates", "client_id"},
	{"ai_suggestions", "client_id"},
	{"ai_generations", "client_id"},
	{"affiliates", "client_id"},
}

// UserEdges: tablas que referencian al usuario directamente. affiliates
// aparece dos veces porque tiene dos FKs independientes hacia users.
var UserEdges = []Edge{
	{"supplement_favorites", "user_id"},
	{"reminder_settings", "user_id"},
	{"referral_conversions", "converted_user_id"},
	{"live_class_registrations", "user_id"},
	{"live_classes", "instructor_id"},
	{"instructors", "user_id"},
	{"course_reviews", "user_id"},
	{"course_enrollments", "user_id"},
	{"challenge_participants", "user_id"},
	{"certificates", "user_id"},
	{"ai_generations", "user_id"},
	{"affiliates", "user_id"},
	{"affiliates", "approved_by"},
	{"food_favorites", "user_id"},
}

// WorkspaceEdges: restos con ámbito de workspace que se barren justo antes de
// borrar la fila del workspace (el resto de ramas cae por cascada del esquema).
var WorkspaceEdges = []Edge{
	{"food_favorites", "workspace_id"},
	{"supplement_favorites", "workspace_id"},
	{"supplements", "workspace_id"},
	{"reminder_settings", "workspace_id"},
	// Rama de facturación. La auditoría cae antes que las facturas (su FK
	// invoice_id es NO ACTION); el trigger append-only solo admite este
	// DELETE dentro de la transacción de purga. Las líneas caen por cascada
	// de invoices; invoice_settings y workspace_certificates, por cascada
	// del workspace.
	{"invoice_audit_logs", "workspace_id"},
	{"invoices", "workspace_id"},
}
