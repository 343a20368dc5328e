// Package verifactu: cálculo de la huella encadenada del registro de
// facturación (VeriFactu, AEAT). Algoritmo: SHA-256 sobre la cadena canónica;
// cada factura enlaza con la huella de su predecesora en (workspace, serie).

package verifactu

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	pkgverifactu "github.com/entrenia/entrenia-core/pkg/verifactu"
)

// Códigos de tipo de factura para la cadena canónica (catálogo AEAT).
const (
	TypeCodeStandard      = "F1" // factura completa
	TypeCodeSimplified    = "F2" // factura simplificada
	TypeCodeRectificative = "R1" // rectificativa
)

var typeCodes = map[string]string{
	"standard":      TypeCodeStandard,
	"simplified":    TypeCodeSimplified,
	"rectificative": TypeCodeRectificative,
}

// hexHash valida una huella: 64 caracteres hex en minúscula.
var hexHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ChainInput son los campos inmutables que participan en la huella, en el
// orden canónico. PrevHash vacío marca la primera factura de la cadena.
type ChainInput struct {
	Number        string          // forma externa: "F2025-00001"
	IssueDate     time.Time       // fecha de expedición
	InvoiceType   string          // standard | simplified | rectificative
	IssuerTaxID   string          // NIF del emisor
	TotalTax      decimal.Decimal // cuota total
	Total         decimal.Decimal // importe total
	PrevHash      string          // huella de la predecesora; "" si es la primera
	Registration  time.Time       // instante de alta en el registro
	IssuerTZ      *time.Location  // huso civil del emisor; nil = Europe/Madrid
}

// ChainCalculator canonicaliza y calcula la huella. Función pura: nunca hace I/O.
type ChainCalculator struct{}

// NewChainCalculator crea el servicio.
func NewChainCalculator() *ChainCalculator {
	return &ChainCalculator{}
}

// Canonicalize produce la cadena canónica con separador "&" y orden fijo:
//
//	numero & fecha(dd-mm-yyyy) & tipo & NIF & cuota & importe & huellaPrev & tsRegistro
//
// Los importes van a dos decimales con punto; el timestamp en hora civil del
// emisor con offset explícito. El formato es la superficie de compatibilidad:
// debe ser estable byte a byte entre procesos y versiones.
func (c *ChainCalculator) Canonicalize(in *ChainInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("verifactu: ChainInput es obligatorio")
	}
	if in.Number == "" {
		return "", fmt.Errorf("verifactu: Number es obligatorio")
	}
	if in.IssueDate.IsZero() {
		return "", fmt.Errorf("verifactu: IssueDate es obligatoria")
	}
	typeCode, ok := typeCodes[in.InvoiceType]
	if !ok {
		return "", fmt.Errorf("verifactu: tipo de factura desconocido %q", in.InvoiceType)
	}
	nif := pkgverifactu.NormalizeTaxID(in.IssuerTaxID)
	if nif == "" {
		return "", fmt.Errorf("verifactu: IssuerTaxID es obligatorio")
	}
	if in.PrevHash != "" && !hexHash.MatchString(in.PrevHash) {
		return "", fmt.Errorf("verifactu: PrevHash inválida (hex de 64 en minúscula)")
	}
	if in.Registration.IsZero() {
		return "", fmt.Errorf("verifactu: Registration es obligatorio")
	}

	return pkgverifactu.NormalizeText(in.Number) + "&" +
		pkgverifactu.FormatDate(in.IssueDate) + "&" +
		typeCode + "&" +
		nif + "&" +
		pkgverifactu.FormatAmount(in.TotalTax) + "&" +
		pkgverifactu.FormatAmount(in.Total) + "&" +
		in.PrevHash + "&" +
		pkgverifactu.FormatLocalTimestamp(in.Registration, in.IssuerTZ), nil
}

// ComputeHash calcula la huella: SHA-256 de la cadena canónica, hex en minúscula.
func (c *ChainCalculator) ComputeHash(in *ChainInput) (string, error) {
	canonical, err := c.Canonicalize(in)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// ChainRecord es una factura finalizada tal como está en el registro:
// sus campos canónicos más la huella y el enlace persistidos.
type ChainRecord struct {
	Input          ChainInput
	StoredPrevHash string
	StoredHash     string
}

// VerifyResult es el resultado de recorrer una cadena.
type VerifyResult struct {
	OK          bool
	BreakIndex  int    // posición de la primera ruptura (-1 si OK)
	BreakNumber string // número externo de la factura donde rompe
}

// VerifyChain recorre las facturas en orden de finalización y recalcula la
// huella corrida: h'_0 = H(c_0, prev=""), h'_i = H(c_i, prev=h'_{i-1}).
// A partir de la segunda factura compara h'_i con la huella almacenada; la
// primera discrepancia se reporta y no se intenta reparar. Una alteración en
// cualquier factura anterior invalida la recomputación de todas las siguientes.
func (c *ChainCalculator) VerifyChain(records []ChainRecord) VerifyResult {
	if len(records) == 0 {
		return VerifyResult{OK: true, BreakIndex: -1}
	}

	running := ""
	for i := range records {
		in := records[i].Input
		in.PrevHash = running
		recomputed, err := c.ComputeHash(&in)
		if err != nil {
			return VerifyResult{BreakIndex: i, BreakNumber: records[i].Input.Number}
		}
		if i > 0 && recomputed != records[i].StoredHash {
			return VerifyResult{BreakIndex: i, BreakNumber: records[i].Input.Number}
		}
		if i > 0 && records[i].StoredPrevHash != records[i-1].StoredHash {
			return VerifyResult{BreakIndex: i, BreakNumber: records[i].Input.Number}
		}
		running = recomputed
	}
	return VerifyResult{OK: true, BreakIndex: -1}
}
