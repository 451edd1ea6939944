package services

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// percentOf returns part/whole as a percentage rounded to two places.
func percentOf(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	f, _ := decimal.NewFromInt(part).Mul(hundred).DivRound(decimal.NewFromInt(whole), 2).Float64()
	return f
}
