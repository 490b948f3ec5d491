// Package safemath provides checked int64 arithmetic for money-moving code.
// Every operation fails closed: overflow, underflow and division by zero
// return an error instead of wrapping or panicking.
package safemath

import (
	"math"

	"github.com/epeers/commitvault/internal/errs"
)

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, errs.With(errs.ErrArithmeticOverflow, "safemath.add")
	}
	return a + b, nil
}

// Sub returns a-b or ErrArithmeticOverflow.
func Sub(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, errs.With(errs.ErrArithmeticOverflow, "safemath.sub")
	}
	return a - b, nil
}

// Mul returns a*b or ErrArithmeticOverflow.
func Mul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, errs.With(errs.ErrArithmeticOverflow, "safemath.mul")
	}
	c := a * b
	if c/b != a {
		return 0, errs.With(errs.ErrArithmeticOverflow, "safemath.mul")
	}
	return c, nil
}

// Div returns a/b truncated toward zero.
func Div(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errs.With(errs.ErrDivisionByZero, "safemath.div")
	}
	if a == math.MinInt64 && b == -1 {
		return 0, errs.With(errs.ErrArithmeticOverflow, "safemath.div")
	}
	return a / b, nil
}

// Percent returns value*percent/100. percent must be within [0,100].
func Percent(value int64, percent uint32) (int64, error) {
	if percent > 100 {
		return 0, errs.With(errs.ErrInvalidPercent, "safemath.percent")
	}
	m, err := Mul(value, int64(percent))
	if err != nil {
		return 0, err
	}
	return Div(m, 100)
}

// PercentFrom returns part*100/whole.
func PercentFrom(part, whole int64) (int64, error) {
	if whole == 0 {
		return 0, errs.With(errs.ErrDivisionByZero, "safemath.percent_from")
	}
	m, err := Mul(part, 100)
	if err != nil {
		return 0, err
	}
	return Div(m, whole)
}

// LossPercent returns (initial-current)*100/initial. It is negative on a gain.
func LossPercent(initial, current int64) (int64, error) {
	if initial == 0 {
		return 0, errs.With(errs.ErrDivisionByZero, "safemath.loss_percent")
	}
	loss, err := Sub(initial, current)
	if err != nil {
		return 0, err
	}
	return PercentFrom(loss, initial)
}

// GainPercent returns (current-initial)*100/initial. It is negative on a loss.
func GainPercent(initial, current int64) (int64, error) {
	if initial == 0 {
		return 0, errs.With(errs.ErrDivisionByZero, "safemath.gain_percent")
	}
	gain, err := Sub(current, initial)
	if err != nil {
		return 0, err
	}
	return PercentFrom(gain, initial)
}

// DrawdownPercent is the loss of current relative to principal, floored at 0.
// A zero or negative principal yields 0 rather than dividing by zero.
//
//	DrawdownPercent(p, p) == 0
//	DrawdownPercent(p, 0) == 100
//	DrawdownPercent(0, x) == 0
func DrawdownPercent(principal, current int64) (int64, error) {
	if principal <= 0 || current >= principal {
		return 0, nil
	}
	return LossPercent(principal, current)
}

// PenaltyAmount returns the penalty taken from value at penaltyPercent.
func PenaltyAmount(value int64, penaltyPercent uint32) (int64, error) {
	return Percent(value, penaltyPercent)
}

// ApplyPenalty returns value minus its penalty.
func ApplyPenalty(value int64, penaltyPercent uint32) (int64, error) {
	p, err := PenaltyAmount(value, penaltyPercent)
	if err != nil {
		return 0, err
	}
	return Sub(value, p)
}

// BasisPoints returns value*bps/10000.
func BasisPoints(value int64, bps uint32) (int64, error) {
	m, err := Mul(value, int64(bps))
	if err != nil {
		return 0, err
	}
	return Div(m, 10_000)
}
