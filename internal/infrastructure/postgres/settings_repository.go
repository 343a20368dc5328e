package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
)

var _ repository.SettingsRepository = (*SettingsRepo)(nil)

// SettingsRepo implementación de SettingsRepository (usable con pool o tx).
type SettingsRepo struct {
	q Querier
}

// NewSettingsRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSettingsRepository(q Querier) *SettingsRepo {
	return &SettingsRepo{q: q}
}

// Get obtiene la configuración del workspace; nil si no existe.
func (r *SettingsRepo) Get(ctx context.Context, workspaceID string) (*entity.InvoiceSettings, error) {
	query := `
		SELECT workspace_id, issuer_tax_id, issuer_legal_name, issuer_address,
		       series_prefix, next_number, rectificative_prefix, rectificative_next_number,
		       default_tax_rate, default_tax_name,
		       submission_enabled, submission_environment,
		       software_name, software_version, software_install_id,
		       software_vendor_name, software_vendor_tax_id, software_system_id,
		       created_at, updated_at
		FROM invoice_settings WHERE workspace_id = $1`
	var s entity.InvoiceSettings
	var issuerAddress, defaultTaxRate, defaultTaxName *string
	err := r.q.QueryRow(ctx, query, workspaceID).Scan(
		&s.WorkspaceID, &s.IssuerTaxID, &s.IssuerLegalName, &issuerAddress,
		&s.SeriesPrefix, &s.NextNumber, &s.RectificativePrefix, &s.RectificativeNextNumber,
		&defaultTaxRate, &defaultTaxName,
		&s.SubmissionEnabled, &s.SubmissionEnvironment,
		&s.Software.Name, &s.Software.Version, &s.Software.InstallID,
		&s.Software.VendorName, &s.Software.VendorTaxID, &s.Software.SystemID,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice settings: %w", err)
	}
	s.IssuerAddress = derefStr(issuerAddress)
	s.DefaultTaxRate = derefStr(defaultTaxRate)
	s.DefaultTaxName = derefStr(defaultTaxName)

	cert, err := r.GetCertificate(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	s.Certificate = cert
	return &s, nil
}

// Save crea o actualiza la configuración. Los contadores solo se escriben en
// el INSERT inicial; después solo los mueve AllocateNumber bajo bloqueo.
func (r *SettingsRepo) Save(ctx context.Context, s *entity.InvoiceSettings) error {
	query := `
		INSERT INTO invoice_settings (workspace_id, issuer_tax_id, issuer_legal_name, issuer_address,
			series_prefix, next_number, rectificative_prefix, rectificative_next_number,
			default_tax_rate, default_tax_name,
			submission_enabled, submission_environment,
			software_name, software_version, software_install_id,
			software_vendor_name, software_vendor_tax_id, software_system_id,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (workspace_id) DO UPDATE SET
			issuer_tax_id = EXCLUDED.issuer_tax_id,
			issuer_legal_name = EXCLUDED.issuer_legal_name,
			issuer_address = EXCLUDED.issuer_address,
			series_prefix = EXCLUDED.series_prefix,
			rectificative_prefix = EXCLUDED.rectificative_prefix,
			default_tax_rate = EXCLUDED.default_tax_rate,
			default_tax_name = EXCLUDED.default_tax_name,
			submission_enabled = EXCLUDED.submission_enabled,
			submission_environment = EXCLUDED.submission_environment,
			software_name = EXCLUDED.software_name,
			software_version = EXCLUDED.software_version,
			software_install_id = EXCLUDED.software_install_id,
			software_vendor_name = EXCLUDED.software_vendor_name,
			software_vendor_tax_id = EXCLUDED.software_vendor_tax_id,
			software_system_id = EXCLUDED.software_system_id,
			updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query,
		s.WorkspaceID, s.IssuerTaxID, s.IssuerLegalName, nullIfEmpty(s.IssuerAddress),
		s.SeriesPrefix, s.NextNumber, s.RectificativePrefix, s.RectificativeNextNumber,
		nullIfEmpty(s.DefaultTaxRate), nullIfEmpty(s.DefaultTaxName),
		s.SubmissionEnabled, s.SubmissionEnvironment,
		s.Software.Name, s.Software.Version, s.Software.InstallID,
		s.Software.VendorName, s.Software.VendorTaxID, s.Software.SystemID,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save invoice settings: %w", err)
	}
	return nil
}

// AllocateNumber asigna el siguiente consecutivo de (workspace, serie) bajo
// SELECT ... FOR UPDATE sobre la fila de configuración. Debe llamarse dentro
// de una transacción viva; el orden de asignación es el orden de commit.
func (r *SettingsRepo) AllocateNumber(ctx context.Context, workspaceID, series string) (int, error) {
	var seriesPrefix, rectPrefix string
	var nextNumber, rectNextNumber int
	err := r.q.QueryRow(ctx, `
		SELECT series_prefix, next_number, rectificative_prefix, rectificative_next_number
		FROM invoice_settings WHERE workspace_id = $1 FOR UPDATE`, workspaceID).Scan(
		&seriesPrefix, &nextNumber, &rectPrefix, &rectNextNumber,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: el workspace no tiene configuración de facturación", domain.ErrSettingsMissing)
		}
		if isDeadlock(err) || isSerializationFailure(err) {
			return 0, fmt.Errorf("%w: concurrencia al bloquear el contador", domain.ErrConflict)
		}
		return 0, fmt.Errorf("lock settings row: %w", err)
	}

	var column string
	var number int
	switch series {
	case seriesPrefix:
		column, number = "next_number", nextNumber
	case rectPrefix:
		column, number = "rectificative_next_number", rectNextNumber
	default:
		return 0, fmt.Errorf("%w: serie desconocida %q", domain.ErrInvalidInput, series)
	}

	// column viene del switch de arriba, nunca del caller.
	_, err = r.q.Exec(ctx,
		fmt.Sprintf(`UPDATE invoice_settings SET %s = %s + 1, updated_at = now() WHERE workspace_id = $1`, column, column),
		workspaceID,
	)
	if err != nil {
		if isDeadlock(err) || isSerializationFailure(err) {
			return 0, fmt.Errorf("%w: concurrencia al avanzar el contador", domain.ErrConflict)
		}
		return 0, fmt.Errorf("advance counter: %w", err)
	}
	return number, nil
}

// StoreCertificate persiste el certificado cifrado, reemplazando el anterior.
func (r *SettingsRepo) StoreCertificate(ctx context.Context, cert *entity.Certificate) error {
	query := `
		INSERT INTO workspace_certificates (workspace_id, cert_pem, key_ciphertext, key_iv,
			subject, serial_number, issuer_tax_id, expires_at, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (workspace_id) DO UPDATE SET
			cert_pem = EXCLUDED.cert_pem,
			key_ciphertext = EXCLUDED.key_ciphertext,
			key_iv = EXCLUDED.key_iv,
			subject = EXCLUDED.subject,
			serial_number = EXCLUDED.serial_number,
			issuer_tax_id = EXCLUDED.issuer_tax_id,
			expires_at = EXCLUDED.expires_at,
			uploaded_at = EXCLUDED.uploaded_at`
	_, err := r.q.Exec(ctx, query,
		cert.WorkspaceID, cert.CertPEM, cert.KeyCiphertext, cert.KeyIV,
		cert.Subject, cert.SerialNumber, cert.IssuerTaxID, cert.ExpiresAt, cert.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("store certificate: %w", err)
	}
	return nil
}

// GetCertificate obtiene el certificado cifrado; nil si no hay.
func (r *SettingsRepo) GetCertificate(ctx context.Context, workspaceID string) (*entity.Certificate, error) {
	query := `
		SELECT workspace_id, cert_pem, key_ciphertext, key_iv,
		       subject, serial_number, issuer_tax_id, expires_at, uploaded_at
		FROM workspace_certificates WHERE workspace_id = $1`
	var c entity.Certificate
	err := r.q.QueryRow(ctx, query, workspaceID).Scan(
		&c.WorkspaceID, &c.CertPEM, &c.KeyCiphertext, &c.KeyIV,
		&c.Subject, &c.SerialNumber, &c.IssuerTaxID, &c.ExpiresAt, &c.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return &c, nil
}
