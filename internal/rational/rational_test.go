package rational

import (
	"math/big"
	"testing"
)

func TestFromRawAmount(t *testing.T) {
	tests := []struct {
		name     string
		raw      int64
		decimals uint8
		want     string
	}{
		{"whole unit", 1_000000, 6, "1"},
		{"fractional", 1_500000, 6, "3/2"},
		{"18 decimals", 1_000000000000000000, 18, "1"},
		{"zero", 0, 6, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromRawAmount(big.NewInt(tt.raw), tt.decimals)
			if got.String() != tt.want {
				t.Errorf("FromRawAmount(%d, %d) = %s, want %s", tt.raw, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestDivByZero(t *testing.T) {
	x := FromInt64(10)
	if _, ok := x.Div(Zero()); ok {
		t.Fatal("Div by zero should return false")
	}
	if _, ok := Zero().Recip(); ok {
		t.Fatal("Recip of zero should return false")
	}
}

func TestArithmetic(t *testing.T) {
	a := FromInt64(3)
	b := FromInt64(4)

	if got := a.Add(b); got.String() != "7" {
		t.Errorf("Add = %s, want 7", got)
	}
	if got := a.Mul(b); got.String() != "12" {
		t.Errorf("Mul = %s, want 12", got)
	}
	if got := b.Sub(a); got.String() != "1" {
		t.Errorf("Sub = %s, want 1", got)
	}
	q, ok := a.Div(b)
	if !ok || q.String() != "3/4" {
		t.Errorf("Div = %s, want 3/4", q)
	}
}

func TestCmpMaxMin(t *testing.T) {
	a := FromInt64(3)
	b := FromInt64(4)

	if a.Cmp(b) >= 0 {
		t.Error("expected 3 < 4")
	}
	if Max(a, b).String() != "4" {
		t.Error("Max should be 4")
	}
	if Min(a, b).String() != "3" {
		t.Error("Min should be 3")
	}
}
