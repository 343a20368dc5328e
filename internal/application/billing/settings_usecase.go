package billing

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/internal/domain/repository"
	"github.com/entrenia/entrenia-core/internal/infrastructure/vault"
	pkgverifactu "github.com/entrenia/entrenia-core/pkg/verifactu"
)

// SettingsUseCase gestiona la configuración de facturación del workspace y
// el certificado del emisor.
type SettingsUseCase struct {
	settingsRepo repository.SettingsRepository
	vault        *vault.Vault
	software     entity.SoftwareID
}

// NewSettingsUseCase construye el caso de uso. software identifica este
// sistema de facturación ante la AEAT y es el mismo para todos los workspaces.
func NewSettingsUseCase(settingsRepo repository.SettingsRepository, v *vault.Vault, software entity.SoftwareID) *SettingsUseCase {
	return &SettingsUseCase{settingsRepo: settingsRepo, vault: v, software: software}
}

// Get devuelve la configuración visible del workspace.
func (uc *SettingsUseCase) Get(ctx context.Context, workspaceID string) (*dto.InvoiceSettingsResponse, error) {
	settings, err := uc.settingsRepo.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, domain.ErrSettingsMissing
	}
	return toSettingsResponse(settings), nil
}

// Save crea o actualiza la configuración. Los contadores de serie nunca se
// tocan por esta vía: solo avanzan en la finalización.
func (uc *SettingsUseCase) Save(ctx context.Context, workspaceID string, in dto.InvoiceSettingsRequest) (*dto.InvoiceSettingsResponse, error) {
	if in.IssuerLegalName == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := pkgverifactu.ValidateNIF(in.IssuerTaxID); err != nil {
		return nil, domain.ErrInvalidInput
	}
	env := in.SubmissionEnvironment
	if env == "" {
		env = entity.SubmissionEnvTest
	}
	if env != entity.SubmissionEnvTest && env != entity.SubmissionEnvProd {
		return nil, domain.ErrInvalidInput
	}

	existing, err := uc.settingsRepo.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	settings := existing
	if settings == nil {
		settings = &entity.InvoiceSettings{
			WorkspaceID:             workspaceID,
			SeriesPrefix:            "F",
			NextNumber:              1,
			RectificativePrefix:     "R",
			RectificativeNextNumber: 1,
			CreatedAt:               now,
		}
	}

	// El prefijo de serie no se puede cambiar con facturas ya emitidas:
	// cambiaría la forma externa de los números de una cadena viva.
	if existing != nil && in.SeriesPrefix != "" && in.SeriesPrefix != existing.SeriesPrefix && existing.NextNumber > 1 {
		return nil, domain.ErrStateError
	}
	if existing != nil && in.RectificativePrefix != "" && in.RectificativePrefix != existing.RectificativePrefix && existing.RectificativeNextNumber > 1 {
		return nil, domain.ErrStateError
	}

	settings.IssuerTaxID = pkgverifactu.NormalizeTaxID(in.IssuerTaxID)
	settings.IssuerLegalName = pkgverifactu.NormalizeText(in.IssuerLegalName)
	settings.IssuerAddress = pkgverifactu.NormalizeText(in.IssuerAddress)
	if in.SeriesPrefix != "" {
		settings.SeriesPrefix = in.SeriesPrefix
	}
	if in.RectificativePrefix != "" {
		settings.RectificativePrefix = in.RectificativePrefix
	}
	settings.DefaultTaxRate = in.DefaultTaxRate
	settings.DefaultTaxName = in.DefaultTaxName
	settings.SubmissionEnabled = in.SubmissionEnabled
	settings.SubmissionEnvironment = env
	settings.Software = uc.software
	settings.UpdatedAt = now

	if err := uc.settingsRepo.Save(ctx, settings); err != nil {
		return nil, err
	}
	return toSettingsResponse(settings), nil
}

// UploadCertificate valida el PKCS#12, cifra la llave en el vault y persiste
// el certificado del workspace. Devuelve solo metadatos públicos.
func (uc *SettingsUseCase) UploadCertificate(ctx context.Context, workspaceID string, in dto.CertificateUploadRequest) (*entity.CertificateMetadata, error) {
	if in.P12Base64 == "" {
		return nil, domain.ErrInvalidInput
	}
	p12Bytes, err := base64.StdEncoding.DecodeString(in.P12Base64)
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	settings, err := uc.settingsRepo.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, domain.ErrSettingsMissing
	}

	cert, err := uc.vault.Store(p12Bytes, in.Passphrase, workspaceID, time.Now())
	if err != nil {
		return nil, err
	}
	if err := uc.settingsRepo.StoreCertificate(ctx, cert); err != nil {
		return nil, err
	}
	meta := cert.Metadata()
	return &meta, nil
}

// CertificateMetadata devuelve los metadatos del certificado cargado.
func (uc *SettingsUseCase) CertificateMetadata(ctx context.Context, workspaceID string) (*entity.CertificateMetadata, error) {
	cert, err := uc.settingsRepo.GetCertificate(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, domain.ErrCertMissing
	}
	meta := cert.Metadata()
	return &meta, nil
}

func toSettingsResponse(s *entity.InvoiceSettings) *dto.InvoiceSettingsResponse {
	return &dto.InvoiceSettingsResponse{
		IssuerTaxID:             s.IssuerTaxID,
		IssuerLegalName:         s.IssuerLegalName,
		IssuerAddress:           s.IssuerAddress,
		SeriesPrefix:            s.SeriesPrefix,
		NextNumber:              s.NextNumber,
		RectificativePrefix:     s.RectificativePrefix,
		RectificativeNextNumber: s.RectificativeNextNumber,
		DefaultTaxRate:          s.DefaultTaxRate,
		DefaultTaxName:          s.DefaultTaxName,
		SubmissionEnabled:       s.SubmissionEnabled,
		SubmissionEnvironment:   s.SubmissionEnvironment,
		HasCertificate:          s.Certificate != nil,
	}
}
