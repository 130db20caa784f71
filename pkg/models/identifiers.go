// Package models holds the value types shared across the classification
// engine: chain identifiers, the action tree, bundle headers/data, and the
// metadata bundle each inspector consumes.
package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a 20-byte account/token/pool/exchange identifier on the source
// chain. Immutable, comparable.
type Address [20]byte

// Hash is a 32-byte transaction or block identifier.
type Hash [32]byte

// ZeroAddress is the conventional "no address" / native-asset sentinel.
var ZeroAddress Address

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// AddressFromHex parses a "0x"-prefixed or bare hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	var a Address
	b, err := decodeHex(s, 20)
	if err != nil {
		return a, fmt.Errorf("parse address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// HashFromHex parses a "0x"-prefixed or bare hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := decodeHex(s, 32)
	if err != nil {
		return h, fmt.Errorf("parse hash %q: %w", s, err)
	}
	copy(h[:], b)
	return h, nil
}

func decodeHex(s string, wantLen int) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("want %d bytes, got %d", wantLen, len(b))
	}
	return b, nil
}

// TokenInfo describes a single ERC20-shaped token. Decimals must be in
// [0, 36]; scaling a raw on-chain amount divides by 10^Decimals.
type TokenInfo struct {
	Address  Address
	Decimals uint8
	Symbol   string
}

// Pair is an unordered semantic token pair. Ordered returns the canonical
// storage orientation (lower address first).
type Pair struct {
	Token0 Address
	Token1 Address
}

// Ordered returns the pair sorted by address, and whether a flip occurred.
func (p Pair) Ordered() (Pair, bool) {
	if bytesLess(p.Token1[:], p.Token0[:]) {
		return Pair{Token0: p.Token1, Token1: p.Token0}, true
	}
	return p, false
}

// Flip swaps token0/token1.
func (p Pair) Flip() Pair {
	return Pair{Token0: p.Token1, Token1: p.Token0}
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
