package models

import "github.com/shopspring/decimal"

// ToFloat64 safely converts decimal to float64
func ToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Round rounds v to places decimals, half away from zero
func Round(v float64, places int32) float64 {
	return ToFloat64(decimal.NewFromFloat(v).Round(places))
}
