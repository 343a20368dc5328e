package verifactu_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrenia/entrenia-core/pkg/verifactu"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"100", "100.00"},
		{"121", "121.00"},
		{"0", "0.00"},
		{"-0", "0.00"}, // sin signo para cero
		{"1234567.891", "1234567.89"},
		{"-50.5", "-50.50"},
		{"0.005", "0.01"},
	}
	for _, c := range cases {
		d := decimal.RequireFromString(c.in)
		assert.Equal(t, c.want, verifactu.FormatAmount(d), "FormatAmount(%s)", c.in)
	}
}

// TestParseAmount_RoundTrip valida la ley parse(render(d)) == d.Round(2)
// para los importes usados en la cadena canónica.
func TestParseAmount_RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "100", "121.00", "21.005", "-3.14", "999999.99"} {
		d := decimal.RequireFromString(s)
		parsed, err := verifactu.ParseAmount(verifactu.FormatAmount(d))
		require.NoError(t, err)
		assert.True(t, parsed.Equal(d.Round(2)), "round-trip de %s", s)
	}
}

func TestParseAmount_Invalido(t *testing.T) {
	for _, s := range []string{"", "  ", "12,34", "1.2.3", "abc"} {
		_, err := verifactu.ParseAmount(s)
		assert.Error(t, err, "ParseAmount(%q) debe fallar", s)
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "15-03-2025", verifactu.FormatDate(d))
}

// TestFormatLocalTimestamp_DST verifica que el offset del emisor cambia con
// el horario de verano peninsular: +01:00 en invierno, +02:00 en verano.
func TestFormatLocalTimestamp_DST(t *testing.T) {
	loc := verifactu.MustIssuerLocation()

	invierno := time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)
	verano := time.Date(2025, time.July, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-01-10T13:00:00+01:00", verifactu.FormatLocalTimestamp(invierno, loc))
	assert.Equal(t, "2025-07-10T14:00:00+02:00", verifactu.FormatLocalTimestamp(verano, loc))
}

func TestNormalizeTaxID(t *testing.T) {
	assert.Equal(t, "B12345678", verifactu.NormalizeTaxID(" b-12.345.678 "))
	assert.Equal(t, "X1234567L", verifactu.NormalizeTaxID("x 1234567-l"))
	assert.Equal(t, "", verifactu.NormalizeTaxID("---"))
}

func TestValidateNIF(t *testing.T) {
	// DNI 12345678 → 12345678 % 23 = 14 → letra Z
	require.NoError(t, verifactu.ValidateNIF("12345678Z"))
	assert.Error(t, verifactu.ValidateNIF("12345678A"), "letra de control incorrecta")

	// CIF de sociedad: estructura letra + 7 dígitos + control
	require.NoError(t, verifactu.ValidateNIF("B12345674"))

	assert.Error(t, verifactu.ValidateNIF("123"), "longitud incorrecta")
	assert.Error(t, verifactu.ValidateNIF("?2345678Z"))
}
