package dto

import "github.com/shopspring/decimal"

// CreateInvoiceRequest payload de creación de factura en borrador.
type CreateInvoiceRequest struct {
	Type          string                     `json:"type"` // standard | simplified | rectificative
	RectifiedID   string                     `json:"rectified_id,omitempty"`
	CustomerName  string                     `json:"customer_name"`
	CustomerTaxID string                     `json:"customer_tax_id,omitempty"`
	Lines         []CreateInvoiceLineRequest `json:"lines"`
}

// CreateInvoiceLineRequest línea de la factura.
type CreateInvoiceLineRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // porcentaje: 21, 10, 4, 0
}

// InvoiceResponse proyección pública de la factura.
type InvoiceResponse struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Type          string          `json:"type"`
	Series        string          `json:"series,omitempty"`
	Number        string          `json:"number,omitempty"`
	RectifiedID   string          `json:"rectified_id,omitempty"`
	IssueDate     string          `json:"issue_date"`
	IssuerTaxID   string          `json:"issuer_tax_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerTaxID string          `json:"customer_tax_id,omitempty"`
	TotalBase     decimal.Decimal `json:"total_base"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	Total         decimal.Decimal `json:"total"`

	Hash                 string `json:"hash,omitempty"`
	PrevHash             string `json:"prev_hash,omitempty"`
	VerifactuUUID        string `json:"verifactu_uuid,omitempty"`
	RegistrationDatetime string `json:"registration_datetime,omitempty"`
	QRPayload            string `json:"qr_payload,omitempty"`

	SubmissionStatus string `json:"submission_status"`
	SubmittedAt      string `json:"submitted_at,omitempty"`

	Lines []InvoiceLineResponse `json:"lines,omitempty"`
}

// InvoiceLineResponse línea de la proyección.
type InvoiceLineResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ChainVerificationResponse resultado de verificar la cadena de una serie.
type ChainVerificationResponse struct {
	Series      string `json:"series"`
	Checked     int    `json:"checked"`
	OK          bool   `json:"ok"`
	BreakNumber string `json:"break_number,omitempty"`
	BreakIndex  int    `json:"break_index,omitempty"`
}

// InvoiceSettingsRequest alta o edición de la configuración de facturación.
type InvoiceSettingsRequest struct {
	IssuerTaxID     string `json:"issuer_tax_id"`
	IssuerLegalName string `json:"issuer_legal_name"`
	IssuerAddress   string `json:"issuer_address,omitempty"`

	SeriesPrefix        string `json:"series_prefix,omitempty"`
	RectificativePrefix string `json:"rectificative_prefix,omitempty"`

	DefaultTaxRate string `json:"default_tax_rate,omitempty"`
	DefaultTaxName string `json:"default_tax_name,omitempty"`

	SubmissionEnabled     bool   `json:"submission_enabled"`
	SubmissionEnvironment string `json:"submission_environment,omitempty"`
}

// InvoiceSettingsResponse configuración visible del workspace.
type InvoiceSettingsResponse struct {
	IssuerTaxID     string `json:"issuer_tax_id"`
	IssuerLegalName string `json:"issuer_legal_name"`
	IssuerAddress   string `json:"issuer_address,omitempty"`

	SeriesPrefix            string `json:"series_prefix"`
	NextNumber              int    `json:"next_number"`
	RectificativePrefix     string `json:"rectificative_prefix"`
	RectificativeNextNumber int    `json:"rectificative_next_number"`

	DefaultTaxRate string `json:"default_tax_rate,omitempty"`
	DefaultTaxName string `json:"default_tax_name,omitempty"`

	SubmissionEnabled     bool   `json:"submission_enabled"`
	SubmissionEnvironment string `json:"submission_environment"`

	HasCertificate bool `json:"has_certificate"`
}
