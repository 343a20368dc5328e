package verifactu

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	soapURLTest = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	soapURLProd = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"

	soapNS = "http://schemas.xmlsoap.org/soap/envelope/"

	// Estados de envío y de registro que devuelve la AEAT.
	estadoCorrecto       = "Correcto"
	estadoParcial        = "ParcialmenteCorrecto"
	estadoIncorrecto     = "Incorrecto"
	estadoRegCorrecto    = "Correcto"
	estadoRegAceptadoErr = "AceptadoConErrores"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// Submitter define el puerto de salida para la entrega de registros firmados
// a la AEAT. La implementación concreta usa SOAP con mTLS; para tests se
// inyecta un doble.
type Submitter interface {
	// Submit envía el registro firmado al endpoint del entorno indicado,
	// autenticándose con el certificado del emisor.
	Submit(ctx context.Context, signedXML []byte, env string, cert tls.Certificate) (*SubmitResult, error)
}

// ── Implementación SOAP ────────────────────────────────────────────────────────

// SOAPClient implementa Submitter contra el WS de la AEAT. El certificado del
// emisor varía por workspace, así que el transporte TLS se construye por envío.
type SOAPClient struct {
	timeout time.Duration
}

// NewSOAPClient construye el cliente con el deadline de red indicado
// (30 s si se pasa cero).
func NewSOAPClient(timeout time.Duration) *SOAPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SOAPClient{timeout: timeout}
}

// ── Estructuras de respuesta SOAP ─────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Respuesta *respuestaRegFactu `xml:"RespuestaRegFactuSistemaFacturacion"`
	Fault     *soapFault         `xml:"Fault"`
}

type respuestaRegFactu struct {
	CSV         string           `xml:"CSV"`
	EstadoEnvio string           `xml:"EstadoEnvio"`
	Lineas      []respuestaLinea `xml:"RespuestaLinea"`
}

type respuestaLinea struct {
	NumSerieFactura          string `xml:"IDFactura>NumSerieFactura"`
	EstadoRegistro           string `xml:"EstadoRegistro"`
	CodigoErrorRegistro      string `xml:"CodigoErrorRegistro"`
	DescripcionErrorRegistro string `xml:"DescripcionErrorRegistro"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit envuelve el registro firmado en un Envelope SOAP y lo entrega por
// HTTPS con autenticación mutua. Los fallos de red devuelven error (envoltura
// de domain.ErrTransport); las respuestas parseables se clasifican en el
// SubmitResult sin abortar.
func (c *SOAPClient) Submit(ctx context.Context, signedXML []byte, env string, cert tls.Certificate) (*SubmitResult, error) {
	soapURL, err := endpointFor(env)
	if err != nil {
		return nil, err
	}

	// El cuerpo ya viene serializado y firmado; se envuelve sin re-codificar
	// para no invalidar la firma.
	var payload bytes.Buffer
	payload.WriteString(`<soapenv:Envelope xmlns:soapenv="` + soapNS + `"><soapenv:Header/><soapenv:Body>`)
	payload.Write(signedXML)
	payload.WriteString(`</soapenv:Body></soapenv:Envelope>`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, soapURL, &payload)
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	client := &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: timeout o cancelación: %v", domain.ErrTransport, ctx.Err())
		}
		return nil, fmt.Errorf("%w: llamada HTTPS fallida: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrTransport, err)
	}

	return parseResponse(rawBody), nil
}

func endpointFor(env string) (string, error) {
	switch env {
	case entity.SubmissionEnvProd:
		return soapURLProd, nil
	case entity.SubmissionEnvTest:
		return soapURLTest, nil
	}
	return "", fmt.Errorf("soap: entorno desconocido %q (usar %q o %q)", env, entity.SubmissionEnvTest, entity.SubmissionEnvProd)
}

// parseResponse clasifica la respuesta de la AEAT. Una respuesta que no se
// puede interpretar no se trata como rechazo: queda como error reintentable.
func parseResponse(rawBody []byte) *SubmitResult {
	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		return &SubmitResult{
			Status:  OutcomeError,
			Message: "no se pudo parsear la respuesta SOAP",
			Payload: rawBody,
		}
	}

	// SOAP Fault: error de protocolo o de autenticación, no un rechazo del registro
	if envResp.Body.Fault != nil {
		return &SubmitResult{
			Status:  OutcomeError,
			Message: fmt.Sprintf("SOAP Fault [%s]: %s", envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString),
			Payload: rawBody,
		}
	}

	r := envResp.Body.Respuesta
	if r == nil {
		return &SubmitResult{
			Status:  OutcomeError,
			Message: "respuesta SOAP vacía o inesperada",
			Payload: rawBody,
		}
	}

	switch r.EstadoEnvio {
	case estadoCorrecto:
		return &SubmitResult{Status: OutcomeAccepted, CSV: r.CSV, Payload: rawBody}
	case estadoParcial, estadoIncorrecto:
		code, msg := firstRegistryError(r.Lineas)
		return &SubmitResult{Status: OutcomeRejected, Code: code, Message: msg, Payload: rawBody}
	}
	return &SubmitResult{
		Status:  OutcomeError,
		Message: "estado de envío desconocido: " + r.EstadoEnvio,
		Payload: rawBody,
	}
}

func firstRegistryError(lineas []respuestaLinea) (code, msg string) {
	for _, l := range lineas {
		if l.EstadoRegistro == estadoRegCorrecto || l.EstadoRegistro == estadoRegAceptadoErr {
			continue
		}
		return l.CodigoErrorRegistro, l.DescripcionErrorRegistro
	}
	return "", "registro rechazado sin detalle"
}
