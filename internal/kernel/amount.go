package kernel

import (
	"fmt"
	"math/big"
)

// Amount wraps math/big.Int to represent arbitrary-precision token flow
// amounts. Flow sums are never floating point (spec §4.3, §9 design
// note); only USD-denominated rollups downstream may use float64.
type Amount struct {
	v *big.Int
}

func ZeroAmount() Amount {
	return Amount{v: big.NewInt(0)}
}

// ParseAmount parses a base-10 integer string (wei-like units). An empty
// string is treated as zero.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return ZeroAmount(), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("kernel: invalid amount %q", s)
	}
	return Amount{v: v}, nil
}

// MustParseAmount panics on malformed input; reserved for literal
// constants in tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) String() string {
	if a.v == nil {
		return "0"
	}
	return a.v.String()
}

func (a Amount) IsNegative() bool {
	return a.v != nil && a.v.Sign() < 0
}

func (a Amount) IsZero() bool {
	return a.v == nil || a.v.Sign() == 0
}

func (a Amount) Add(b Amount) Amount {
	out := new(big.Int)
	out.Add(a.bigOrZero(), b.bigOrZero())
	return Amount{v: out}
}

func (a Amount) Sub(b Amount) Amount {
	out := new(big.Int)
	out.Sub(a.bigOrZero(), b.bigOrZero())
	return Amount{v: out}
}

func (a Amount) Cmp(b Amount) int {
	return a.bigOrZero().Cmp(b.bigOrZero())
}

func (a Amount) GreaterThan(b Amount) bool {
	return a.Cmp(b) > 0
}

// DivInt64 performs truncating integer division; n<=0 returns zero.
func (a Amount) DivInt64(n int64) Amount {
	if n <= 0 {
		return ZeroAmount()
	}
	out := new(big.Int)
	out.Quo(a.bigOrZero(), big.NewInt(n))
	return Amount{v: out}
}

// Pow10 returns 10^n as an Amount, for threshold comparisons against
// very large flow totals.
func Pow10(n int) Amount {
	out := new(big.Int)
	out.Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	return Amount{v: out}
}

func (a Amount) bigOrZero() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

// ToUSD applies a float64 price to produce a USD-denominated float. This
// is the one sanctioned boundary where float64 enters the flow pipeline
// (spec §9): per-event usdValue and downstream scoring only, never the
// persisted aggregate flow sums.
func (a Amount) ToUSD(priceUSD float64, decimals int) float64 {
	if priceUSD <= 0 {
		return 0
	}
	f := new(big.Float).SetInt(a.bigOrZero())
	scale := new(big.Float).SetFloat64(1)
	for i := 0; i < decimals; i++ {
		scale.Mul(scale, big.NewFloat(10))
	}
	f.Quo(f, scale)
	result, _ := f.Float64()
	return result * priceUSD
}
