package verifactu

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/entrenia/entrenia-core/internal/domain/entity"
	"github.com/entrenia/entrenia-core/pkg/verifactu"
)

// Namespaces oficiales del esquema SuministroLR de VERI*FACTU.
const (
	// Mensaje de alta (SuministroLR.xsd)
	NsSum = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroLR.xsd"
	// Tipos de información compartidos (SuministroInformacion.xsd)
	NsSum1 = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd"
	// XML Digital Signature
	NsDs = "http://www.w3.org/2000/09/xmldsig#"
	// XAdES (para la firma)
	NsXades = "http://uri.etsi.org/01903/v1.3.2#"
)

// Códigos del esquema de la AEAT.
const (
	idVersion     = "1.0"
	taxCodeIVA    = "01" // Impuesto: IVA
	hashAlgSHA256 = "01" // TipoHuella: SHA-256
	firstRecord   = "S"
)

// XMLBuilderService construye el XML del registro de facturación (sin firma).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el []byte del mensaje RegFactuSistemaFacturacion para una
// factura finalizada. La firma XAdES se inyecta después sobre este documento.
func (s *XMLBuilderService) Build(ctx *RegistrationContext) ([]byte, error) {
	if ctx == nil || ctx.Invoice == nil || ctx.Settings == nil {
		return nil, fmt.Errorf("verifactu: faltan invoice o settings en el contexto")
	}
	inv := ctx.Invoice
	if !inv.IsFinalized() || inv.Hash == "" {
		return nil, fmt.Errorf("verifactu: la factura %s no está finalizada", inv.NumberText)
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Space: NsSum, Local: "RegFactuSistemaFacturacion"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: "registro-" + inv.VerifactuUUID},
			{Name: xml.Name{Local: "xmlns:sum"}, Value: NsSum},
			{Name: xml.Name{Local: "xmlns:sum1"}, Value: NsSum1},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:xades"}, Value: NsXades},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	s.writeHeader(enc, ctx.Settings)
	if err := s.writeRegistroAlta(enc, ctx); err != nil {
		return nil, err
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeHeader escribe sum:Cabecera con el obligado a emitir.
func (s *XMLBuilderService) writeHeader(enc *xml.Encoder, settings *entity.InvoiceSettings) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum, Local: "Cabecera"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "ObligadoEmision"}})
	writeSum1(enc, "NombreRazon", settings.IssuerLegalName)
	writeSum1(enc, "NIF", verifactu.NormalizeTaxID(settings.IssuerTaxID))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "ObligadoEmision"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum, Local: "Cabecera"}})
}

func (s *XMLBuilderService) writeRegistroAlta(enc *xml.Encoder, ctx *RegistrationContext) error {
	inv := ctx.Invoice
	settings := ctx.Settings

	typeCode, err := verifactuTypeCode(inv.Type)
	if err != nil {
		return err
	}

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum, Local: "RegistroFactura"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "RegistroAlta"}})

	writeSum1(enc, "IDVersion", idVersion)

	// ---- sum1:IDFactura identifica la factura de forma única ante la AEAT
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "IDFactura"}})
	writeSum1(enc, "IDEmisorFactura", verifactu.NormalizeTaxID(inv.IssuerTaxID))
	writeSum1(enc, "NumSerieFactura", inv.NumberText)
	writeSum1(enc, "FechaExpedicionFactura", verifactu.FormatDate(inv.IssueDatetime))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "IDFactura"}})

	writeSum1(enc, "NombreRazonEmisor", settings.IssuerLegalName)
	writeSum1(enc, "TipoFactura", typeCode)

	// Factura rectificativa: referencia a la factura sustituida
	if inv.Type == entity.InvoiceTypeRectificative && ctx.RectifiedNumber != "" {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "FacturasRectificadas"}})
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "IDFacturaRectificada"}})
		writeSum1(enc, "IDEmisorFactura", verifactu.NormalizeTaxID(inv.IssuerTaxID))
		writeSum1(enc, "NumSerieFactura", ctx.RectifiedNumber)
		writeSum1(enc, "FechaExpedicionFactura", verifactu.FormatDate(ctx.RectifiedIssueDate))
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "IDFacturaRectificada"}})
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "FacturasRectificadas"}})
	}

	writeSum1(enc, "DescripcionOperacion", operationDescription(ctx))

	// ---- Destinatario (salvo factura simplificada sin identificar)
	if inv.CustomerTaxID != "" {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "Destinatarios"}})
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "IDDestinatario"}})
		writeSum1(enc, "NombreRazon", inv.CustomerName)
		writeSum1(enc, "NIF", verifactu.NormalizeTaxID(inv.CustomerTaxID))
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "IDDestinatario"}})
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "Destinatarios"}})
	}

	// ---- sum1:Desglose agrupado por tipo impositivo
	if err := s.writeBreakdown(enc, ctx); err != nil {
		return err
	}

	writeSum1(enc, "CuotaTotal", verifactu.FormatAmount(inv.TotalTax))
	writeSum1(enc, "ImporteTotal", verifactu.FormatAmount(inv.Total))

	// ---- Encadenamiento con el registro anterior de la serie
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "Encadenamiento"}})
	if inv.PrevHash == "" {
		writeSum1(enc, "PrimerRegistro", firstRecord)
	} else {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "RegistroAnterior"}})
		writeSum1(enc, "IDEmisorFactura", verifactu.NormalizeTaxID(inv.IssuerTaxID))
		writeSum1(enc, "NumSerieFactura", ctx.PrevNumber)
		writeSum1(enc, "FechaExpedicionFactura", verifactu.FormatDate(ctx.PrevIssueDate))
		writeSum1(enc, "Huella", inv.PrevHash)
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "RegistroAnterior"}})
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "Encadenamiento"}})

	// ---- Identificación del sistema informático de facturación
	s.writeSoftware(enc, settings)

	writeSum1(enc, "FechaHoraHusoGenRegistro", verifactu.FormatLocalTimestamp(inv.RegistrationDatetime, verifactu.MustIssuerLocation()))
	writeSum1(enc, "TipoHuella", hashAlgSHA256)
	writeSum1(enc, "Huella", inv.Hash)

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "RegistroAlta"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum, Local: "RegistroFactura"}})
	return nil
}

// writeBreakdown agrupa las líneas por tipo impositivo, como exige el esquema.
func (s *XMLBuilderService) writeBreakdown(enc *xml.Encoder, ctx *RegistrationContext) error {
	type bucket struct {
		rate decimal.Decimal
		base decimal.Decimal
		tax  decimal.Decimal
	}
	var buckets []*bucket
	for _, line := range ctx.Lines {
		var found *bucket
		for _, b := range buckets {
			if b.rate.Equal(line.TaxRate) {
				found = b
				break
			}
		}
		if found == nil {
			found = &bucket{rate: line.TaxRate}
			buckets = append(buckets, found)
		}
		base := line.Quantity.Mul(line.UnitPrice)
		found.base = found.base.Add(base)
		found.tax = found.tax.Add(base.Mul(line.TaxRate).Div(decimal.NewFromInt(100)))
	}
	// Sin líneas desglosadas se declara un único detalle con los totales
	if len(buckets) == 0 {
		rate := decimal.Zero
		if ctx.Invoice.TotalBase.IsPositive() {
			rate = ctx.Invoice.TotalTax.Div(ctx.Invoice.TotalBase).Mul(decimal.NewFromInt(100)).Round(0)
		}
		buckets = append(buckets, &bucket{rate: rate, base: ctx.Invoice.TotalBase, tax: ctx.Invoice.TotalTax})
	}

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "Desglose"}})
	for _, b := range buckets {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "DetalleDesglose"}})
		writeSum1(enc, "Impuesto", taxCodeIVA)
		writeSum1(enc, "TipoImpositivo", b.rate.Round(2).String())
		writeSum1(enc, "BaseImponibleOimporteNoSujeto", verifactu.FormatAmount(b.base))
		writeSum1(enc, "CuotaRepercutida", verifactu.FormatAmount(b.tax))
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "DetalleDesglose"}})
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "Desglose"}})
	return nil
}

func (s *XMLBuilderService) writeSoftware(enc *xml.Encoder, settings *entity.InvoiceSettings) {
	sw := settings.Software
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: "SistemaInformatico"}})
	writeSum1(enc, "NombreRazon", sw.VendorName)
	writeSum1(enc, "NIF", verifactu.NormalizeTaxID(sw.VendorTaxID))
	writeSum1(enc, "NombreSistemaInformatico", sw.Name)
	writeSum1(enc, "IdSistemaInformatico", sw.SystemID)
	writeSum1(enc, "Version", sw.Version)
	writeSum1(enc, "NumeroInstalacion", sw.InstallID)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: "SistemaInformatico"}})
}

func writeSum1(enc *xml.Encoder, local, value string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSum1, Local: local}})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSum1, Local: local}})
}

func verifactuTypeCode(invoiceType string) (string, error) {
	switch invoiceType {
	case entity.InvoiceTypeStandard:
		return "F1", nil
	case entity.InvoiceTypeSimplified:
		return "F2", nil
	case entity.InvoiceTypeRectificative:
		return "R1", nil
	}
	return "", fmt.Errorf("verifactu: tipo de factura desconocido %q", invoiceType)
}

func operationDescription(ctx *RegistrationContext) string {
	if len(ctx.Lines) == 1 && ctx.Lines[0].Description != "" {
		return ctx.Lines[0].Description
	}
	if len(ctx.Lines) > 1 {
		return ctx.Lines[0].Description + " y " + strconv.Itoa(len(ctx.Lines)-1) + " conceptos más"
	}
	return "Servicios de entrenamiento y nutrición"
}
