package model

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Amount is a non-negative quantity in the ledger's smallest indivisible unit.
// It is encoded as a decimal integer string in JSON and YAML so that values
// never pass through floating point.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding n units
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount parses a base-10 integer string
func ParseAmount(s string) (Amount, error) {
	var a Amount
	s = strings.TrimSpace(s)
	if s == "" {
		return a, nil
	}
	if err := a.v.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return a, nil
}

// MustAmount is ParseAmount for constants; it panics on malformed input.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) String() string {
	return a.v.Dec()
}

// IsZero reports whether the amount is zero
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp returns -1, 0 or +1
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Gt reports whether a > b
func (a Amount) Gt(b Amount) bool {
	return a.v.Gt(&b.v)
}

// Add returns a+b and whether the addition overflowed 256 bits.
func (a Amount) Add(b Amount) (Amount, bool) {
	var out Amount
	_, overflow := out.v.AddOverflow(&a.v, &b.v)
	return out, overflow
}

// Sum adds all amounts; ok is false on overflow.
func Sum(amounts ...Amount) (total Amount, ok bool) {
	for _, a := range amounts {
		var overflow bool
		total, overflow = total.Add(a)
		if overflow {
			return Amount{}, false
		}
	}
	return total, true
}

// MarshalText implements encoding.TextMarshaler (used by encoding/json and yaml.v3)
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
