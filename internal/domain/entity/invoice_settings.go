package entity

import "time"

// Entornos de envío a la AEAT.
const (
	SubmissionEnvTest = "test"
	SubmissionEnvProd = "production"
)

// InvoiceSettings es la configuración de facturación de un workspace:
// identidad del emisor, series con sus contadores y parámetros de envío.
type InvoiceSettings struct {
	WorkspaceID string

	// Identidad del emisor.
	IssuerTaxID     string
	IssuerLegalName string
	IssuerAddress   string

	// Series y contadores. El consecutivo se asigna bajo bloqueo de fila
	// dentro de la transacción de finalización.
	SeriesPrefix            string // por defecto "F"
	NextNumber              int
	RectificativePrefix     string // por defecto "R"
	RectificativeNextNumber int

	DefaultTaxRate string
	DefaultTaxName string

	// Envío al registro de la AEAT.
	SubmissionEnabled     bool
	SubmissionEnvironment string // test | production
	Software              SoftwareID

	Certificate *Certificate // nil si no hay certificado cargado

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SoftwareID son los campos de identificación del sistema informático de
// facturación que exige el reglamento VeriFactu.
type SoftwareID struct {
	Name         string
	Version      string
	InstallID    string
	VendorName   string
	VendorTaxID  string
	SystemID     string // IdSistemaInformatico asignado por el fabricante
}

// SeriesFor devuelve el prefijo de serie que corresponde al tipo de factura.
func (s *InvoiceSettings) SeriesFor(invoiceType string) string {
	if invoiceType == InvoiceTypeRectificative {
		if s.RectificativePrefix != "" {
			return s.RectificativePrefix
		}
		return "R"
	}
	if s.SeriesPrefix != "" {
		return s.SeriesPrefix
	}
	return "F"
}

// Certificate es el material del emisor en reposo: certificado público en PEM
// y llave privada cifrada (AES-256-GCM, AAD = workspace_id). La llave en claro
// nunca se persiste.
type Certificate struct {
	WorkspaceID   string
	CertPEM       string
	KeyCiphertext []byte // salida GCM, incluye el tag de autenticación
	KeyIV         []byte // 12 bytes, aleatorio por escritura
	Subject       string
	SerialNumber  string
	IssuerTaxID   string
	ExpiresAt     time.Time
	UploadedAt    time.Time
}

// Expired indica si el certificado ya no sirve para enviar.
func (c *Certificate) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CertificateMetadata es la vista pública del certificado (sin material de llave).
type CertificateMetadata struct {
	Subject      string    `json:"subject"`
	SerialNumber string    `json:"serial_number"`
	IssuerTaxID  string    `json:"issuer_tax_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Metadata proyecta la vista pública.
func (c *Certificate) Metadata() CertificateMetadata {
	return CertificateMetadata{
		Subject:      c.Subject,
		SerialNumber: c.SerialNumber,
		IssuerTaxID:  c.IssuerTaxID,
		ExpiresAt:    c.ExpiresAt,
		UploadedAt:   c.UploadedAt,
	}
}
