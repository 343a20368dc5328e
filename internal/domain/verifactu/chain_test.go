package verifactu_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrenia/entrenia-core/internal/domain/verifactu"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vectores de referencia de la huella encadenada.
//
// Estos tests son el canario del registro VeriFactu: si alguien toca el orden
// de concatenación, el separador, el formato de importes o el render del
// timestamp, el hash cambia y el test falla antes de llegar a producción.
//
// Vector 1 (primera de la cadena, huella previa vacía):
//
//	Cadena = "F2025-00001&15-03-2025&F1&B12345678&21.00&121.00&" +
//	         "&2025-03-15T10:00:00+01:00"
//
// Vector 2 (segunda, enlaza con la huella del vector 1).
// ──────────────────────────────────────────────────────────────────────────────

const (
	testHashFirst  = "2f6d86e792054ed538d86f2fa0f4cfba91673364713b6b5f95c8a098db86f65b"
	testHashSecond = "88a04315228bb351b9f70e2a6b0463c6ce6f54b87a49384cdf0a7502ca1fc4d5"

	testCanonicalFirst = "F2025-00001&15-03-2025&F1&B12345678&21.00&121.00&&2025-03-15T10:00:00+01:00"
)

func firstInput() *verifactu.ChainInput {
	return &verifactu.ChainInput{
		Number:       "F2025-00001",
		IssueDate:    time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC),
		InvoiceType:  "standard",
		IssuerTaxID:  "B12345678",
		TotalTax:     decimal.RequireFromString("21.00"),
		Total:        decimal.RequireFromString("121.00"),
		PrevHash:     "",
		Registration: time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC), // 10:00 +01:00
	}
}

func secondInput(prevHash string) *verifactu.ChainInput {
	return &verifactu.ChainInput{
		Number:       "F2025-00002",
		IssueDate:    time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC),
		InvoiceType:  "standard",
		IssuerTaxID:  "B12345678",
		TotalTax:     decimal.RequireFromString("8.68"),
		Total:        decimal.RequireFromString("50.00"),
		PrevHash:     prevHash,
		Registration: time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC), // 11:30 +01:00
	}
}

func TestCanonicalize_VectorExacto(t *testing.T) {
	calc := verifactu.NewChainCalculator()

	canonical, err := calc.Canonicalize(firstInput())
	require.NoError(t, err)
	assert.Equal(t, testCanonicalFirst, canonical,
		"la cadena canónica debe ser estable byte a byte")
}

func TestComputeHash_PrimeraDeLaCadena(t *testing.T) {
	calc := verifactu.NewChainCalculator()

	hash, err := calc.ComputeHash(firstInput())
	require.NoError(t, err)
	assert.Equal(t, testHashFirst, hash)
	assert.Len(t, hash, 64, "SHA-256 en hex son 64 caracteres")
}

func TestComputeHash_EnlaceConPredecesora(t *testing.T) {
	calc := verifactu.NewChainCalculator()

	hash, err := calc.ComputeHash(secondInput(testHashFirst))
	require.NoError(t, err)
	assert.Equal(t, testHashSecond, hash)
}

// TestComputeHash_Determinista verifica que el mismo input produce siempre la
// misma huella (recomputación estable entre procesos).
func TestComputeHash_Determinista(t *testing.T) {
	calc := verifactu.NewChainCalculator()

	h1, err1 := calc.ComputeHash(firstInput())
	h2, err2 := calc.ComputeHash(firstInput())
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, h1, h2)
}

// TestComputeHash_SensibleAlInput: cambiar cualquier campo canónico cambia la huella.
func TestComputeHash_SensibleAlInput(t *testing.T) {
	calc := verifactu.NewChainCalculator()
	base, err := calc.ComputeHash(firstInput())
	require.NoError(t, err)

	mutado := firstInput()
	mutado.Total = decimal.RequireFromString("121.01")
	h, err := calc.ComputeHash(mutado)
	require.NoError(t, err)
	assert.NotEqual(t, base, h, "cambiar el total debe cambiar la huella")

	mutado = firstInput()
	mutado.PrevHash = testHashSecond
	h, err = calc.ComputeHash(mutado)
	require.NoError(t, err)
	assert.NotEqual(t, base, h, "cambiar la huella previa debe cambiar la huella")
}

// TestComputeHash_NIFNormalizado: el NIF se limpia antes de entrar a la cadena,
// así que variantes con guiones o minúsculas producen la misma huella.
func TestComputeHash_NIFNormalizado(t *testing.T) {
	calc := verifactu.NewChainCalculator()
	base, err := calc.ComputeHash(firstInput())
	require.NoError(t, err)

	variante := firstInput()
	variante.IssuerTaxID = " b-12345678 "
	h, err := calc.ComputeHash(variante)
	require.NoError(t, err)
	assert.Equal(t, base, h)
}

// ── Errores de validación ─────────────────────────────────────────────────────

func TestCanonicalize_ErrorSiNil(t *testing.T) {
	calc := verifactu.NewChainCalculator()
	_, err := calc.Canonicalize(nil)
	assert.Error(t, err)
}

func TestCanonicalize_ErrorSiCampoFaltante(t *testing.T) {
	calc := verifactu.NewChainCalculator()

	in := firstInput()
	in.Number = ""
	_, err := calc.Canonicalize(in)
	assert.Error(t, err, "sin número debe fallar")

	in = firstInput()
	in.IssuerTaxID = "---"
	_, err = calc.Canonicalize(in)
	assert.Error(t, err, "NIF sin alfanuméricos debe fallar")

	in = firstInput()
	in.InvoiceType = "proforma"
	_, err = calc.Canonicalize(in)
	assert.Error(t, err, "tipo desconocido debe fallar")

	in = firstInput()
	in.PrevHash = "ZZZZ"
	_, err = calc.Canonicalize(in)
	assert.Error(t, err, "huella previa no-hex debe fallar")
}

// ── Verificación de cadena ────────────────────────────────────────────────────

func buildChain(t *testing.T) []verifactu.ChainRecord {
	t.Helper()
	return []verifactu.ChainRecord{
		{Input: *firstInput(), StoredPrevHash: "", StoredHash: testHashFirst},
		{Input: *secondInput(testHashFirst), StoredPrevHash: testHashFirst, StoredHash: testHashSecond},
	}
}

func TestVerifyChain_OK(t *testing.T) {
	calc := verifactu.NewChainCalculator()

	res := calc.VerifyChain(buildChain(t))
	assert.True(t, res.OK)
	assert.Equal(t, -1, res.BreakIndex)
}

func TestVerifyChain_Vacia(t *testing.T) {
	calc := verifactu.NewChainCalculator()
	assert.True(t, calc.VerifyChain(nil).OK)
}

// TestVerifyChain_AlteracionEnLaPrimera reproduce la manipulación en el store:
// cambiar el total de la primera factura invalida la recomputación de la
// segunda (su huella previa implícita ya no canonicaliza al valor almacenado).
func TestVerifyChain_AlteracionEnLaPrimera(t *testing.T) {
	calc := verifactu.NewChainCalculator()

	chain := buildChain(t)
	chain[0].Input.Total = decimal.RequireFromString("999.00")

	res := calc.VerifyChain(chain)
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.BreakIndex)
	assert.Equal(t, "F2025-00002", res.BreakNumber)
}

func TestVerifyChain_EnlacePrevioRoto(t *testing.T) {
	calc := verifactu.NewChainCalculator()

	chain := buildChain(t)
	chain[1].StoredPrevHash = testHashSecond // enlace que no apunta a la predecesora

	res := calc.VerifyChain(chain)
	assert.False(t, res.OK)
	assert.Equal(t, "F2025-00002", res.BreakNumber)
}
