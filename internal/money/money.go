// Package money provides exact fixed-point arithmetic for monetary values.
// Every dollar amount in the engine flows through this package; no other
// package performs raw numeric operations on money.
package money

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ErrInvalidOperand is returned when an arithmetic precondition is violated,
// such as division by zero or a negative value where only non-negative
// amounts are legal.
var ErrInvalidOperand = eris.New("money: invalid operand")

// Common constants used across bracket and phase-out arithmetic.
var (
	Zero    = decimal.Zero
	One     = decimal.NewFromInt(1)
	Hundred = decimal.NewFromInt(100)
)

// FromDollars builds an amount from a whole-dollar integer.
func FromDollars(d int64) decimal.Decimal {
	return decimal.NewFromInt(d)
}

// FromFloat converts a float input at the intake boundary. Amounts inside
// the engine must never round-trip through float64 again after this point.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Rate builds a rate such as Rate(22, 2) = 0.22.
func Rate(value int64, exp int32) decimal.Decimal {
	return decimal.New(value, -exp)
}

// RoundMoney rounds to the cent using round-half-up, the rounding rule tax
// forms mandate. It is idempotent: RoundMoney(RoundMoney(x)) == RoundMoney(x).
func RoundMoney(x decimal.Decimal) decimal.Decimal {
	return x.Round(2)
}

// RoundDollar rounds to the whole dollar using round-half-up, per the "round
// to nearest dollar" option on form instructions.
func RoundDollar(x decimal.Decimal) decimal.Decimal {
	return x.Round(0)
}

// ApplyRate multiplies an amount by a rate and rounds to the cent. The same
// inputs always produce the same output to the last digit.
func ApplyRate(x, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsNegative() {
		return decimal.Zero, eris.Wrap(ErrInvalidOperand, "negative rate")
	}
	return RoundMoney(x.Mul(rate)), nil
}

// Div divides a by b at cent precision. Division by zero is a hard error,
// never a silent zero.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, eris.Wrap(ErrInvalidOperand, "division by zero")
	}
	return a.DivRound(b, 9), nil
}

// Ratio computes a/b as an unrounded fraction, used for phase-in ratios and
// receipt splits where intermediate precision matters.
func Ratio(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, eris.Wrap(ErrInvalidOperand, "ratio denominator is zero")
	}
	if a.IsNegative() || b.IsNegative() {
		return decimal.Zero, eris.Wrap(ErrInvalidOperand, "ratio operands must be non-negative")
	}
	return a.DivRound(b, 9), nil
}

// NonNegative clips a value at zero. Bracket walks and deduction chains use
// it where the law says "but not below zero".
func NonNegative(x decimal.Decimal) decimal.Decimal {
	if x.IsNegative() {
		return decimal.Zero
	}
	return x
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of two amounts.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Clamp01 constrains a ratio to [0, 1].
func Clamp01(x decimal.Decimal) decimal.Decimal {
	if x.IsNegative() {
		return decimal.Zero
	}
	if x.GreaterThan(One) {
		return One
	}
	return x
}
