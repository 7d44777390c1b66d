package sii

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateRUT valida que el RUT chileno tenga un dígito verificador correcto
// según el algoritmo módulo 11 del Registro Civil/SII.
// rut puede venir como "76.543.210-K", "76543210-K" o "76543210K".
func ValidateRUT(rut string) error {
	body, dv, err := splitRUT(rut)
	if err != nil {
		return err
	}
	expected := ComputeRUTVerifier(body)
	if dv != expected {
		return fmt.Errorf("sii: dígito verificador del RUT inválido: esperado %c, recibido %c", expected, dv)
	}
	return nil
}

// ComputeRUTVerifier calcula el dígito verificador (0-9 o K) para el cuerpo
// numérico del RUT. Útil para completar el RUT antes de armar el DTE.
func ComputeRUTVerifier(body string) byte {
	// Pesos cíclicos 2..7 aplicados de derecha a izquierda.
	weight := 2
	sum := 0
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	rest := 11 - sum%11
	switch rest {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + rest)
	}
}

// FormatRUT normaliza el RUT al formato que exige el DTE: cuerpo-DV sin puntos.
// Ejemplo: "76.543.210-k" -> "76543210-K".
func FormatRUT(rut string) (string, error) {
	body, dv, err := splitRUT(rut)
	if err != nil {
		return "", err
	}
	return body + "-" + string(dv), nil
}

// splitRUT separa cuerpo numérico y dígito verificador, tolerando puntos y guión.
func splitRUT(rut string) (body string, dv byte, err error) {
	var sb strings.Builder
	for _, r := range rut {
		if r == '.' || r == '-' || unicode.IsSpace(r) {
			continue
		}
		if unicode.IsDigit(r) {
			sb.WriteRune(r)
			continue
		}
		if r == 'k' || r == 'K' {
			sb.WriteRune('K')
			continue
		}
		return "", 0, fmt.Errorf("sii: carácter inválido %q en RUT", r)
	}
	clean := sb.String()
	if len(clean) < 2 {
		return "", 0, fmt.Errorf("sii: RUT demasiado corto: %q", rut)
	}
	body, dv = clean[:len(clean)-1], clean[len(clean)-1]
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return "", 0, fmt.Errorf("sii: cuerpo del RUT no numérico: %q", body)
		}
	}
	return body, dv, nil
}
