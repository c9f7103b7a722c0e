package services

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// toDecimal переводит float64 в decimal; NaN и бесконечности считаются нулём.
func toDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// percentOf возвращает долю amount * percent / 100, округлённую до копеек.
// Половина округляется от нуля: 3.9996 -> 4.00, 14.814 -> 14.81, 1.005 -> 1.01.
func percentOf(amount, percent float64) decimal.Decimal {
	return toDecimal(amount).Mul(toDecimal(percent)).Div(hundred).Round(2)
}

// formatAmount печатает сумму без лишних нулей: 200 -> "200", 199.5 -> "199.5".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
