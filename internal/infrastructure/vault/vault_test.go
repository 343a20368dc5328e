package vault

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	key := make([]byte, keySize)
	_, err := io.ReadFull(rand.Reader, key)
	require.NoError(t, err)
	v, err := New(key)
	require.NoError(t, err)
	return v
}

func TestNew_RechazaLlaveCorta(t *testing.T) {
	_, err := New([]byte("corta"))
	assert.Error(t, err)
}

// TestSealOpen_RoundTrip: decrypt(encrypt(key, A), AAD=A) == key.
func TestSealOpen_RoundTrip(t *testing.T) {
	v := testVault(t)
	plaintext := []byte("material-de-llave-privada-simulado")
	iv := make([]byte, ivSize)
	_, err := io.ReadFull(rand.Reader, iv)
	require.NoError(t, err)

	ct, err := v.seal(plaintext, iv, "workspace-a")
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ct)

	pt, err := v.open(ct, iv, "workspace-a")
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

// TestUse_AADDeOtroWorkspace: un certificado cifrado para el workspace A no se
// abre con el AAD del workspace B; el fallo es ErrCertLocked y no expone nada.
func TestUse_AADDeOtroWorkspace(t *testing.T) {
	v := testVault(t)
	plaintext := []byte("8f2a-llave-pkcs8")
	iv := make([]byte, ivSize)
	_, err := io.ReadFull(rand.Reader, iv)
	require.NoError(t, err)
	ct, err := v.seal(plaintext, iv, "workspace-a")
	require.NoError(t, err)

	cert := &entity.Certificate{
		WorkspaceID:   "workspace-a",
		KeyCiphertext: ct,
		KeyIV:         iv,
	}

	_, err = v.Use(cert, "workspace-b")
	assert.ErrorIs(t, err, domain.ErrCertLocked)

	h, err := v.Use(cert, "workspace-a")
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, plaintext, h.keyDER)
}

// TestUse_CiphertextAlterado: cualquier bit cambiado invalida el tag GCM.
func TestUse_CiphertextAlterado(t *testing.T) {
	v := testVault(t)
	iv := make([]byte, ivSize)
	_, err := io.ReadFull(rand.Reader, iv)
	require.NoError(t, err)
	ct, err := v.seal([]byte("llave"), iv, "workspace-a")
	require.NoError(t, err)

	ct[0] ^= 0x01
	_, err = v.Use(&entity.Certificate{KeyCiphertext: ct, KeyIV: iv}, "workspace-a")
	assert.ErrorIs(t, err, domain.ErrCertLocked)
}

func TestUse_CertificadoNil(t *testing.T) {
	v := testVault(t)
	_, err := v.Use(nil, "workspace-a")
	assert.ErrorIs(t, err, domain.ErrCertMissing)
}

// TestKeyHandle_CloseBorraElMaterial: tras Close el buffer queda en ceros y el
// handle deja de servir para el handshake.
func TestKeyHandle_CloseBorraElMaterial(t *testing.T) {
	v := testVault(t)
	iv := make([]byte, ivSize)
	_, err := io.ReadFull(rand.Reader, iv)
	require.NoError(t, err)
	ct, err := v.seal([]byte("material-sensible"), iv, "w")
	require.NoError(t, err)

	h, err := v.Use(&entity.Certificate{KeyCiphertext: ct, KeyIV: iv}, "w")
	require.NoError(t, err)

	buf := h.keyDER
	h.Close()
	assert.True(t, h.closed)
	if len(buf) > 0 {
		assert.Equal(t, bytes.Repeat([]byte{0}, len(buf)), buf, "el buffer debe quedar en ceros")
	}

	_, err = h.TLSCertificate()
	assert.Error(t, err, "un handle cerrado no debe construir tls.Certificate")

	h.Close() // idempotente
}

// TestIVDistintoPorEscritura: dos cifrados del mismo material no comparten IV
// ni ciphertext (el IV es aleatorio por escritura).
func TestIVDistintoPorEscritura(t *testing.T) {
	v := testVault(t)
	iv1 := make([]byte, ivSize)
	iv2 := make([]byte, ivSize)
	_, _ = io.ReadFull(rand.Reader, iv1)
	_, _ = io.ReadFull(rand.Reader, iv2)

	ct1, err := v.seal([]byte("misma-llave"), iv1, "w")
	require.NoError(t, err)
	ct2, err := v.seal([]byte("misma-llave"), iv2, "w")
	require.NoError(t, err)
	assert.NotEqual(t, ct1, ct2)
}
