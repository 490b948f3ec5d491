package safemath

import (
	"errors"
	"math"
	"testing"

	"github.com/epeers/commitvault/internal/errs"
)

func TestAddSub(t *testing.T) {
	if v, err := Add(100, 50); err != nil || v != 150 {
		t.Errorf("Add(100,50) = %d, %v", v, err)
	}
	if v, err := Add(-100, 50); err != nil || v != -50 {
		t.Errorf("Add(-100,50) = %d, %v", v, err)
	}
	if v, err := Sub(50, 100); err != nil || v != -50 {
		t.Errorf("Sub(50,100) = %d, %v", v, err)
	}
	if _, err := Add(math.MaxInt64, 1); !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
	if _, err := Sub(math.MinInt64, 1); !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("expected underflow, got %v", err)
	}
}

func TestMulDiv(t *testing.T) {
	if v, err := Mul(-10, 5); err != nil || v != -50 {
		t.Errorf("Mul(-10,5) = %d, %v", v, err)
	}
	if _, err := Mul(math.MaxInt64/2+1, 2); !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
	if _, err := Mul(math.MinInt64, -1); !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
	if v, err := Div(100, -5); err != nil || v != -20 {
		t.Errorf("Div(100,-5) = %d, %v", v, err)
	}
	if _, err := Div(100, 0); !errors.Is(err, errs.ErrDivisionByZero) {
		t.Errorf("expected division by zero, got %v", err)
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		value   int64
		percent uint32
		want    int64
	}{
		{1000, 10, 100},
		{1000, 50, 500},
		{1000, 100, 1000},
		{999, 5, 49},
	}
	for _, c := range cases {
		got, err := Percent(c.value, c.percent)
		if err != nil || got != c.want {
			t.Errorf("Percent(%d,%d) = %d, %v; want %d", c.value, c.percent, got, err, c.want)
		}
	}
	if _, err := Percent(1000, 101); !errors.Is(err, errs.ErrInvalidPercent) {
		t.Errorf("expected invalid percent, got %v", err)
	}
}

func TestLossAndGainPercent(t *testing.T) {
	if v, _ := LossPercent(1000, 900); v != 10 {
		t.Errorf("LossPercent(1000,900) = %d", v)
	}
	if v, _ := LossPercent(1000, 1000); v != 0 {
		t.Errorf("LossPercent(1000,1000) = %d", v)
	}
	if v, _ := GainPercent(1000, 1200); v != 20 {
		t.Errorf("GainPercent(1000,1200) = %d", v)
	}
	if _, err := LossPercent(0, 10); !errors.Is(err, errs.ErrDivisionByZero) {
		t.Errorf("expected division by zero, got %v", err)
	}
}

func TestDrawdownPercent(t *testing.T) {
	for _, p := range []int64{1, 7, 1000, math.MaxInt64 / 100} {
		if v, err := DrawdownPercent(p, p); err != nil || v != 0 {
			t.Errorf("DrawdownPercent(%d,%d) = %d, %v", p, p, v, err)
		}
		if v, err := DrawdownPercent(p, 0); err != nil || v != 100 {
			t.Errorf("DrawdownPercent(%d,0) = %d, %v", p, v, err)
		}
	}
	for _, x := range []int64{0, 1, 500, -3} {
		if v, err := DrawdownPercent(0, x); err != nil || v != 0 {
			t.Errorf("DrawdownPercent(0,%d) = %d, %v", x, v, err)
		}
	}
	if v, _ := DrawdownPercent(1000, 899); v != 10 {
		t.Errorf("DrawdownPercent floors: got %d", v)
	}
	if v, _ := DrawdownPercent(1000, 1500); v != 0 {
		t.Errorf("gains report zero drawdown, got %d", v)
	}
}

func TestPenalty(t *testing.T) {
	if v, _ := ApplyPenalty(1000, 10); v != 900 {
		t.Errorf("ApplyPenalty(1000,10) = %d", v)
	}
	if v, _ := ApplyPenalty(1000, 0); v != 1000 {
		t.Errorf("ApplyPenalty(1000,0) = %d", v)
	}
	if v, _ := PenaltyAmount(1000, 5); v != 50 {
		t.Errorf("PenaltyAmount(1000,5) = %d", v)
	}
}

func TestBasisPoints(t *testing.T) {
	if v, _ := BasisPoints(10_000, 450); v != 450 {
		t.Errorf("BasisPoints(10000,450) = %d", v)
	}
}
