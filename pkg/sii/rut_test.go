package sii_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/retail-dte/pkg/sii"
)

func TestComputeRUTVerifier(t *testing.T) {
	// Vectores del algoritmo módulo 11 (pesos cíclicos 2..7 de derecha a izquierda).
	cases := []struct {
		body string
		dv   byte
	}{
		{"76543210", '3'},
		{"11111111", '1'},
		{"12345678", '5'},
		{"24965888", 'K'},
	}
	for _, c := range cases {
		assert.Equal(t, string(c.dv), string(sii.ComputeRUTVerifier(c.body)),
			"cuerpo %s", c.body)
	}
}

func TestValidateRUT_Formatos(t *testing.T) {
	// El mismo RUT en todos los formatos aceptados debe validar.
	for _, rut := range []string{"76.543.210-3", "76543210-3", "765432103"} {
		assert.NoError(t, sii.ValidateRUT(rut), rut)
	}
	assert.Error(t, sii.ValidateRUT("76543210-6"), "DV incorrecto debe fallar")
	assert.Error(t, sii.ValidateRUT("x"), "caracteres inválidos deben fallar")
	assert.Error(t, sii.ValidateRUT(""), "vacío debe fallar")
}

func TestValidateRUT_DigitoK(t *testing.T) {
	require.NoError(t, sii.ValidateRUT("24.965.888-K"))
	require.NoError(t, sii.ValidateRUT("24965888-k"), "k minúscula se normaliza")
}

func TestFormatRUT(t *testing.T) {
	got, err := sii.FormatRUT("76.543.210-3")
	require.NoError(t, err)
	assert.Equal(t, "76543210-3", got)

	got, err = sii.FormatRUT("24965888k")
	require.NoError(t, err)
	assert.Equal(t, "24965888-K", got)
}
