// Package vault custodia el material criptográfico del emisor: certificado
// público en PEM y llave privada cifrada con AES-256-GCM, ligada al workspace
// vía AAD. La llave en claro solo existe en un buffer transitorio que se borra
// al cerrar el handle.

package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

const (
	keySize = 32 // AES-256
	ivSize  = 12 // nonce GCM de 96 bits
)

// Vault cifra y descifra llaves privadas de certificados con una llave de
// proceso compartida (solo lectura tras el arranque).
type Vault struct {
	key []byte
}

// New construye el vault con la llave maestra de 256 bits.
func New(masterKey []byte) (*Vault, error) {
	if len(masterKey) != keySize {
		return nil, fmt.Errorf("vault: la llave maestra debe ser de %d bytes, se recibieron %d", keySize, len(masterKey))
	}
	key := make([]byte, keySize)
	copy(key, masterKey)
	return &Vault{key: key}, nil
}

// Store parsea un PKCS#12, valida la vigencia del certificado y devuelve el
// registro cifrado listo para persistir. Todos los buffers intermedios con
// material de llave se borran antes de retornar.
func (v *Vault) Store(p12Bytes []byte, passphrase, workspaceID string, now time.Time) (*entity.Certificate, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("vault: workspaceID es obligatorio")
	}
	priv, cert, err := pkcs12.Decode(p12Bytes, passphrase)
	if err != nil {
		return nil, fmt.Errorf("vault: decodificar p12: %w", err)
	}
	if now.After(cert.NotAfter) {
		return nil, domain.ErrCertExpired
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("vault: serializar llave privada: %w", err)
	}
	defer wipe(keyDER)

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("vault: generar IV: %w", err)
	}
	ciphertext, err := v.seal(keyDER, iv, workspaceID)
	if err != nil {
		return nil, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})

	return &entity.Certificate{
		WorkspaceID:   workspaceID,
		CertPEM:       string(certPEM),
		KeyCiphertext: ciphertext,
		KeyIV:         iv,
		Subject:       cert.Subject.String(),
		SerialNumber:  cert.SerialNumber.Text(16),
		IssuerTaxID:   cert.Subject.SerialNumber, // los certificados FNMT llevan el NIF en serialNumber del subject
		ExpiresAt:     cert.NotAfter,
		UploadedAt:    now,
	}, nil
}

// Use descifra la llave del certificado ligada al workspace y devuelve un
// handle de vida acotada. AAD distinto (otro workspace) o ciphertext alterado
// fallan con ErrCertLocked sin exponer material.
func (v *Vault) Use(cert *entity.Certificate, workspaceID string) (*KeyHandle, error) {
	if cert == nil {
		return nil, domain.ErrCertMissing
	}
	keyDER, err := v.open(cert.KeyCiphertext, cert.KeyIV, workspaceID)
	if err != nil {
		return nil, domain.ErrCertLocked
	}
	return &KeyHandle{certPEM: []byte(cert.CertPEM), keyDER: keyDER}, nil
}

func (v *Vault) seal(plaintext, iv []byte, workspaceID string) ([]byte, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("vault: cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm: %w", err)
	}
	return aesgcm.Seal(nil, iv, plaintext, []byte(workspaceID)), nil
}

func (v *Vault) open(ciphertext, iv []byte, workspaceID string) ([]byte, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return aesgcm.Open(nil, iv, ciphertext, []byte(workspaceID))
}

// KeyHandle contiene la llave descifrada durante un único intento de envío.
// No es copiable por contrato: el buffer se borra en Close y cualquier uso
// posterior falla. No compartir entre goroutines.
type KeyHandle struct {
	certPEM []byte
	keyDER  []byte
	closed  bool
}

// TLSCertificate construye el tls.Certificate para el handshake mTLS.
func (h *KeyHandle) TLSCertificate() (tls.Certificate, error) {
	if h.closed {
		return tls.Certificate{}, fmt.Errorf("vault: handle cerrado")
	}
	block, _ := pem.Decode(h.certPEM)
	if block == nil {
		return tls.Certificate{}, fmt.Errorf("vault: PEM de certificado inválido")
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("vault: parsear certificado: %w", err)
	}
	priv, err := x509.ParsePKCS8PrivateKey(h.keyDER)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("vault: parsear llave: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  priv,
		Leaf:        leaf,
	}, nil
}

// Close borra el material de llave. Idempotente.
func (h *KeyHandle) Close() {
	if h.closed {
		return
	}
	wipe(h.keyDER)
	h.keyDER = nil
	h.closed = true
}

// wipe sobreescribe el buffer con bytes aleatorios y luego ceros.
func wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	_, _ = io.ReadFull(rand.Reader, b)
	for i := range b {
		b[i] = 0
	}
}
