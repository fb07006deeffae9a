package domain

import (
	"fmt"
	"math"

	"github.com/govalues/decimal"
)

// MoneyScale is the number of fractional digits kept for monetary amounts.
const MoneyScale = 2

var (
	halfCent = decimal.MustNew(5, MoneyScale+1)
	oneCent  = decimal.MustNew(1, MoneyScale)
)

// RoundMoney rounds an amount to cents, halves away from zero (5.25 * 0.10
// gives 0.53), and pads it to two digits.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	cents := d.Trunc(MoneyScale)
	rest, err := d.Sub(cents)
	if err == nil && rest.Abs().Cmp(halfCent) >= 0 {
		if up, err := cents.Add(oneCent.CopySign(d)); err == nil {
			cents = up
		}
	}
	return cents.Pad(MoneyScale)
}

// MoneyFromFloat converts a float amount to a decimal rounded to cents.
func MoneyFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, fmt.Errorf("amount %v is not finite", f)
	}
	d, err := decimal.NewFromFloat64(f)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return RoundMoney(d), nil
}

// mulMoney multiplies two amounts that are known to fit decimal precision.
func mulMoney(a, b decimal.Decimal) (decimal.Decimal, error) {
	r, err := a.Mul(b)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("multiply %s by %s: %w", a, b, err)
	}
	return r, nil
}

func addMoney(a, b decimal.Decimal) (decimal.Decimal, error) {
	r, err := a.Add(b)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("add %s and %s: %w", a, b, err)
	}
	return r, nil
}
