package sanitizer

import "github.com/shopspring/decimal"

// RoundMoney rounds an amount to cents, half away from zero. Negative amounts are kept so the
// validator can reject them.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundMoneyPtr rounds an optional amount in place.
func RoundMoneyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := RoundMoney(*v)
	return &r
}
