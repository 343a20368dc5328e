// Package verifactu: puerto de firma digital del XML de registro de facturación.

package verifactu

import "crypto/tls"

// Signer firma el XML del registro de facturación antes del envío a la AEAT.
type Signer interface {
	// Sign toma el XML del registro (sin firma) y el certificado con llave
	// privada, y retorna el XML con el nodo ds:Signature inyectado.
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
