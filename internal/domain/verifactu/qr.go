package verifactu

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	pkgverifactu "github.com/entrenia/entrenia-core/pkg/verifactu"
)

// URLs de cotejo del QR tributario (servicio ValidarQR de la AEAT).
const (
	QRBaseTest = "https://prewww2.aeat.es/wlpl/TIKE-CONT/ValidarQR"
	QRBaseProd = "https://www2.agenciatributaria.gob.es/wlpl/TIKE-CONT/ValidarQR"
)

// QRInput son los datos mínimos que el reglamento exige en el QR.
type QRInput struct {
	IssuerTaxID string
	Number      string // serie y número en forma externa
	IssueDate   time.Time
	Total       decimal.Decimal
}

// EncodeQR produce la URL de verificación que se codifica como QR:
//
//	{base}?nif=...&numserie=...&fecha=dd-mm-yyyy&importe=x.xx
//
// El orden de los parámetros está prescrito, así que el query string se arma
// a mano (url.Values ordena alfabéticamente). Idempotente; el payload se
// graba en la factura al finalizar y nunca cambia.
func EncodeQR(in QRInput, environment string) (string, error) {
	nif := pkgverifactu.NormalizeTaxID(in.IssuerTaxID)
	if nif == "" {
		return "", fmt.Errorf("verifactu: NIF del emisor es obligatorio para el QR")
	}
	if in.Number == "" {
		return "", fmt.Errorf("verifactu: número de factura es obligatorio para el QR")
	}
	if in.IssueDate.IsZero() {
		return "", fmt.Errorf("verifactu: fecha de expedición es obligatoria para el QR")
	}

	base := QRBaseTest
	if environment == "production" {
		base = QRBaseProd
	}
	return base +
		"?nif=" + url.QueryEscape(nif) +
		"&numserie=" + url.QueryEscape(in.Number) +
		"&fecha=" + url.QueryEscape(pkgverifactu.FormatDate(in.IssueDate)) +
		"&importe=" + url.QueryEscape(pkgverifactu.FormatAmount(in.Total)), nil
}
