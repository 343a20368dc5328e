package dto

// DeleteAccountRequest solicitud de borrado de cuenta (requiere re-autenticación).
type DeleteAccountRequest struct {
	Password string `json:"password"`
	Reason   string `json:"reason,omitempty"`
}

// AccountDeletionResponse estado del ciclo de vida tras la operación.
type AccountDeletionResponse struct {
	Status              string `json:"status"` // active | pending_deletion
	ScheduledDeletionAt string `json:"scheduled_deletion_at,omitempty"`
}

// CertificateUploadRequest alta del certificado del emisor (PKCS#12 en Base64).
type CertificateUploadRequest struct {
	P12Base64  string `json:"p12_base64"`
	Passphrase string `json:"passphrase"`
}
