// Package amount implements overflow-checked arithmetic on ledger units.
//
// Every value that gates money movement (balances, caps, allowances, split legs) goes
// through the checked helpers and fails with domain.ErrOverflow instead of wrapping.
// Informational lifetime totals use SaturatingAdd.
package amount

import (
	"math"
	"math/bits"

	"github.com/punchamoorthee/clawledger/internal/domain"
)

// BasisPoints is the denominator of a split share (10000 = 100%).
const BasisPoints = 10000

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, domain.ErrOverflow
	}
	return diff, nil
}

// AddInt64 returns a+b or ErrOverflow. Used for timestamps, which are signed.
func AddInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, domain.ErrOverflow
	}
	return a + b, nil
}

// Sum adds all values, failing on the first overflow.
func Sum(values ...uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		next, err := Add(total, v)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

// MulDiv returns floor(a*b/d) using a 128-bit intermediate product.
// The quotient must fit in 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, domain.ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, domain.ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// SaturatingAdd returns a+b clamped to math.MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// Split distributes total across shares expressed in basis points.
//
// Every leg but the last is floor(total*share/10000); the last leg receives whatever
// is left, so the legs always add up to exactly total. Shares must sum to 10000.
func Split(total uint64, shares []uint16) ([]uint64, error) {
	var bps uint64
	for _, s := range shares {
		bps += uint64(s)
	}
	if bps != BasisPoints {
		return nil, domain.ErrInvalidSplitShares
	}

	legs := make([]uint64, len(shares))
	var distributed uint64
	for i, share := range shares {
		var leg uint64
		var err error
		if i == len(shares)-1 {
			leg, err = Sub(total, distributed)
		} else {
			leg, err = MulDiv(total, uint64(share), BasisPoints)
		}
		if err != nil {
			return nil, err
		}
		if distributed, err = Add(distributed, leg); err != nil {
			return nil, err
		}
		legs[i] = leg
	}
	return legs, nil
}
