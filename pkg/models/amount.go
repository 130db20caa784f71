package models

import "github.com/rawblock/mev-inspect-engine/internal/rational"

// Amount is an exact, decimals-adjusted token quantity or USD value.
type Amount = rational.Rational
