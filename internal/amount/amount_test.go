package amount

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/clawledger/internal/domain"
)

func TestCheckedArithmetic(t *testing.T) {
	sum, err := Add(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = Add(math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	diff, err := Sub(5, 5)
	require.NoError(t, err)
	assert.Zero(t, diff)

	_, err = Sub(4, 5)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	_, err = Sum(math.MaxUint64-1, 1, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	ts, err := AddInt64(1_700_000_000, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_060), ts)

	_, err = AddInt64(1_700_000_000, math.MaxInt64)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	_, err = AddInt64(math.MinInt64, -1)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64, 10))
	assert.Equal(t, uint64(11), SaturatingAdd(1, 10))
}

func TestMulDivUsesWideIntermediate(t *testing.T) {
	q, err := MulDiv(math.MaxUint64, 9999, BasisPoints)
	require.NoError(t, err)
	assert.Equal(t, uint64(18444899399302180659), q)

	q, err = MulDiv(math.MaxUint64, BasisPoints, BasisPoints)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), q)

	_, err = MulDiv(1, 1, 0)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestSplitRoundingGoesToLastLeg(t *testing.T) {
	legs, err := Split(1_000_000, []uint16{3333, 6667})
	require.NoError(t, err)
	assert.Equal(t, []uint64{333_300, 666_700}, legs)

	legs, err = Split(100, []uint16{3333, 3333, 3334})
	require.NoError(t, err)
	assert.Equal(t, []uint64{33, 33, 34}, legs)

	legs, err = Split(1, []uint16{5000, 5000})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, legs)
}

func TestSplitRejectsBadShares(t *testing.T) {
	_, err := Split(100, []uint16{5000, 4999})
	assert.ErrorIs(t, err, domain.ErrInvalidSplitShares)

	_, err = Split(100, []uint16{9000, 9000})
	assert.ErrorIs(t, err, domain.ErrInvalidSplitShares)
}

func TestSplitConservesTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	totals := []uint64{0, 1, 7, 9999, 10001, 1_000_000, math.MaxUint64}

	for i := 0; i < 500; i++ {
		n := 2 + rng.Intn(9)
		shares := randomPartition(rng, n)
		total := totals[i%len(totals)]
		if i%3 == 0 {
			total = rng.Uint64()
		}

		legs, err := Split(total, shares)
		require.NoError(t, err)
		require.Len(t, legs, n)

		got, err := Sum(legs...)
		require.NoError(t, err)
		require.Equal(t, total, got, "shares=%v", shares)
	}
}

func randomPartition(rng *rand.Rand, n int) []uint16 {
	shares := make([]uint16, n)
	remaining := BasisPoints
	for i := 0; i < n-1; i++ {
		s := 0
		if remaining > 0 {
			s = rng.Intn(remaining + 1)
		}
		shares[i] = uint16(s)
		remaining -= s
	}
	shares[n-1] = uint16(remaining)
	return shares
}
