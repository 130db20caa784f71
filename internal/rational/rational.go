// Package rational provides exact fixed-precision arithmetic for prices,
// amounts, and PnL. Every inspector computation that feeds a USD figure or
// a price comparison goes through a Rational; float64 is only used for the
// final human-readable display value.
package rational

import (
	"fmt"
	"math/big"
)

// Rational is an exact rational number, numerator/denominator of unbounded
// integers. The zero value behaves as 0 in every operation.
type Rational struct {
	r *big.Rat
}

// Zero is the additive identity.
func Zero() Rational { return Rational{r: new(big.Rat)} }

// One is the multiplicative identity.
func One() Rational { return Rational{r: big.NewRat(1, 1)} }

// FromInt64 builds an exact integer rational.
func FromInt64(n int64) Rational {
	return Rational{r: big.NewRat(n, 1)}
}

// FromFraction builds num/den; returns false if den == 0.
func FromFraction(num, den int64) (Rational, bool) {
	if den == 0 {
		return Rational{}, false
	}
	return Rational{r: big.NewRat(num, den)}, true
}

// FromDecimalString parses a decimal literal such as "1.2345" or "-3".
func FromDecimalString(s string) (Rational, bool) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Rational{}, false
	}
	return Rational{r: r}, true
}

// FromFloat64 builds the exact binary value of f, as big.Rat.SetFloat64
// does; it does not search for a simpler-denominator rational near f.
// Returns false for NaN or ±Inf.
func FromFloat64(f float64) (Rational, bool) {
	r := new(big.Rat).SetFloat64(f)
	if r == nil {
		return Rational{}, false
	}
	return Rational{r: r}, true
}

// FromRawAmount scales a raw on-chain integer amount by 10^-decimals,
// i.e. raw / 10^decimals.
func FromRawAmount(raw *big.Int, decimals uint8) Rational {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return Rational{r: new(big.Rat).SetFrac(raw, scale)}
}

func (x Rational) valid() bool { return x.r != nil }

func (x Rational) ratOrZero() *big.Rat {
	if !x.valid() {
		return new(big.Rat)
	}
	return x.r
}

// Add returns x + y.
func (x Rational) Add(y Rational) Rational {
	return Rational{r: new(big.Rat).Add(x.ratOrZero(), y.ratOrZero())}
}

// Sub returns x - y.
func (x Rational) Sub(y Rational) Rational {
	return Rational{r: new(big.Rat).Sub(x.ratOrZero(), y.ratOrZero())}
}

// Mul returns x * y.
func (x Rational) Mul(y Rational) Rational {
	return Rational{r: new(big.Rat).Mul(x.ratOrZero(), y.ratOrZero())}
}

// Div returns x / y, or false if y == 0.
func (x Rational) Div(y Rational) (Rational, bool) {
	if y.IsZero() {
		return Rational{}, false
	}
	return Rational{r: new(big.Rat).Quo(x.ratOrZero(), y.ratOrZero())}, true
}

// Neg returns -x.
func (x Rational) Neg() Rational {
	return Rational{r: new(big.Rat).Neg(x.ratOrZero())}
}

// Recip returns 1/x, or false if x == 0.
func (x Rational) Recip() (Rational, bool) {
	if x.IsZero() {
		return Rational{}, false
	}
	return Rational{r: new(big.Rat).Inv(x.ratOrZero())}, true
}

// IsZero reports whether x == 0.
func (x Rational) IsZero() bool {
	return !x.valid() || x.r.Sign() == 0
}

// Sign returns -1, 0, or 1.
func (x Rational) Sign() int {
	return x.ratOrZero().Sign()
}

// Cmp compares x to y: -1, 0, or 1.
func (x Rational) Cmp(y Rational) int {
	return x.ratOrZero().Cmp(y.ratOrZero())
}

// Abs returns |x|.
func (x Rational) Abs() Rational {
	if x.Sign() < 0 {
		return x.Neg()
	}
	return x
}

// ToFloat64Nearest converts to the nearest float64. Display-only: never
// feed this back into a comparison that matters for bundle acceptance.
func (x Rational) ToFloat64Nearest() float64 {
	f, _ := x.ratOrZero().Float64()
	return f
}

func (x Rational) String() string {
	if !x.valid() {
		return "0"
	}
	return x.r.RatString()
}

// Max returns the larger of x, y.
func Max(x, y Rational) Rational {
	if x.Cmp(y) >= 0 {
		return x
	}
	return y
}

// Min returns the smaller of x, y.
func Min(x, y Rational) Rational {
	if x.Cmp(y) <= 0 {
		return x
	}
	return y
}

// MustFromDecimalString panics on bad input; for use with literal constants only.
func MustFromDecimalString(s string) Rational {
	r, ok := FromDecimalString(s)
	if !ok {
		panic(fmt.Sprintf("rational: invalid decimal literal %q", s))
	}
	return r
}
