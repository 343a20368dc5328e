// Package verifactu contiene los formatos canónicos del registro de facturación
// VeriFactu (AEAT, España): importes, fechas, timestamps con huso del emisor y
// limpieza de NIF. Toda representación numérica de la cadena encadenada y del
// payload QR pasa por este paquete (un único formateador, estable byte a byte).
package verifactu

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// IssuerTimezone es el huso civil del emisor por defecto (península).
// Determina el offset explícito (+01:00 / +02:00 según DST) del timestamp
// de registro que participa en la huella.
const IssuerTimezone = "Europe/Madrid"

// FormatAmount renderiza un importe para la cadena canónica y el QR:
// punto decimal, dos decimales fijos, sin separador de miles, sin signo para cero.
func FormatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		// decimal distingue -0; el formato canónico no.
		return "0.00"
	}
	return d.Round(2).StringFixed(2)
}

// ParseAmount es la inversa de FormatAmount. Rechaza cadenas que no sean
// decimales válidos (ley de ida y vuelta: ParseAmount(FormatAmount(d)) == d.Round(2)).
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("verifactu: importe vacío")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("verifactu: importe inválido %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renderiza una fecha como dd-mm-yyyy (formato AEAT para
// FechaExpedicionFactura y para el parámetro fecha del QR).
func FormatDate(t time.Time) string {
	return t.Format("02-01-2006")
}

// FormatLocalTimestamp renderiza un instante en hora civil del emisor con
// offset explícito (ej: 2025-03-15T10:00:00+01:00). loc nil usa IssuerTimezone.
func FormatLocalTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = MustIssuerLocation()
	}
	return t.In(loc).Format("2006-01-02T15:04:05-07:00")
}

// MustIssuerLocation carga Europe/Madrid. La base tz viene embebida en el
// binario vía time/tzdata (cmd los importa), así que la carga no puede fallar
// en despliegue; si falla es un error de build y se hace panic.
func MustIssuerLocation() *time.Location {
	loc, err := time.LoadLocation(IssuerTimezone)
	if err != nil {
		panic("verifactu: cargar huso " + IssuerTimezone + ": " + err.Error())
	}
	return loc
}

// NormalizeTaxID limpia un NIF/CIF para la cadena canónica y el XML:
// normaliza a NFC, elimina todo carácter no alfanumérico y pasa a mayúsculas.
func NormalizeTaxID(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// NormalizeText normaliza texto libre (razón social, descriptor de cliente)
// a NFC para que la canonicalización sea estable entre runtimes.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// letras de control del DNI/NIE según el algoritmo módulo 23 de la AEAT.
const nifControlLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

// ValidateNIF valida superficialmente un NIF español: DNI (8 dígitos + letra
// de control), NIE (X/Y/Z + 7 dígitos + letra) o CIF (letra + 7 dígitos +
// carácter de control, sin validar el dígito de sociedades). Se usa al
// configurar el emisor; la cadena canónica solo exige NormalizeTaxID.
func ValidateNIF(taxID string) error {
	id := NormalizeTaxID(taxID)
	if len(id) != 9 {
		return fmt.Errorf("verifactu: NIF debe tener 9 caracteres, se recibieron %d", len(id))
	}
	switch {
	case isDigits(id[:8]):
		// DNI: validar letra de control módulo 23
		n := 0
		for i := 0; i < 8; i++ {
			n = n*10 + int(id[i]-'0')
		}
		if id[8] != nifControlLetters[n%23] {
			return fmt.Errorf("verifactu: letra de control del DNI inválida: esperada %c, recibida %c", nifControlLetters[n%23], id[8])
		}
		return nil
	case (id[0] == 'X' || id[0] == 'Y' || id[0] == 'Z') && isDigits(id[1:8]):
		// NIE: sustituir la inicial por 0/1/2 y validar como DNI
		n := int(id[0] - 'X')
		for i := 1; i < 8; i++ {
			n = n*10 + int(id[i]-'0')
		}
		if id[8] != nifControlLetters[n%23] {
			return fmt.Errorf("verifactu: letra de control del NIE inválida")
		}
		return nil
	case id[0] >= 'A' && id[0] <= 'W' && isDigits(id[1:8]):
		// CIF de sociedad: estructura correcta; el control puede ser dígito o letra.
		return nil
	default:
		return fmt.Errorf("verifactu: NIF %q con estructura desconocida", taxID)
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
