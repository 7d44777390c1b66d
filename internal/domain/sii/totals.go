// Cálculo de totales de un DTE: neto, exento, IVA y total.
//
// El cálculo es puro y determinista: los mismos montos de entrada producen
// siempre los mismos totales, requisito para poder recalcular y comparar en
// auditorías posteriores.

package sii

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

// Line es la vista mínima de una línea para el cálculo de totales.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal // pesos enteros por unidad
	Exempt    bool
}

// Totals montos derivados del documento. Invariante: Total = Net + Exempt + Tax.
type Totals struct {
	Net    decimal.Decimal
	Exempt decimal.Decimal
	Tax    decimal.Decimal
	Total  decimal.Decimal
}

// RoundHalfUp redondea al peso entero más cercano, mitad hacia arriba.
// Los montos del dominio son no negativos, por lo que "mitad lejos de cero"
// de decimal.Round coincide con mitad hacia arriba.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// ComputeTotalsNetUp calcula totales a partir de líneas con precios netos
// (facturas): IVA = round(neto × tasa), total = neto + exento + IVA.
// ratePercent es la tasa en puntos porcentuales (19 para IVA vigente).
func ComputeTotalsNetUp(lines []Line, ratePercent decimal.Decimal) Totals {
	var net, exempt decimal.Decimal
	for _, l := range lines {
		lineTotal := l.Quantity.Mul(l.UnitPrice)
		if l.Exempt {
			exempt = exempt.Add(lineTotal)
		} else {
			net = net.Add(lineTotal)
		}
	}
	tax := RoundHalfUp(net.Mul(ratePercent.Div(hundred)))
	return Totals{
		Net:    net,
		Exempt: exempt,
		Tax:    tax,
		Total:  net.Add(exempt).Add(tax),
	}
}

// ComputeTotalsGrossDown calcula totales a partir de líneas con precios que ya
// incluyen IVA (boletas): neto = round(bruto / (1 + tasa)), IVA = bruto − neto.
func ComputeTotalsGrossDown(lines []Line, ratePercent decimal.Decimal) Totals {
	var gross, exempt decimal.Decimal
	for _, l := range lines {
		lineTotal := l.Quantity.Mul(l.UnitPrice)
		if l.Exempt {
			exempt = exempt.Add(lineTotal)
		} else {
			gross = gross.Add(lineTotal)
		}
	}
	net := RoundHalfUp(gross.Div(one.Add(ratePercent.Div(hundred))))
	tax := gross.Sub(net)
	return Totals{
		Net:    net,
		Exempt: exempt,
		Tax:    tax,
		Total:  gross.Add(exempt),
	}
}
