package util

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	out := Map([]string{"a", "b"}, func(s string, i uint64) string {
		return s + string(rune('0'+i))
	})
	assert.Equal(t, []string{"a0", "b1"}, out)
}

func TestFilter(t *testing.T) {
	out := Filter([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	assert.Equal(t, []int{2, 4}, out)
	assert.Empty(t, Filter([]int{}, func(int) bool { return true }))
}

func TestFind(t *testing.T) {
	v, ok := Find([]int{5, 7, 9}, func(i int) bool { return i > 6 })
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = Find([]int{5}, func(i int) bool { return i > 6 })
	assert.False(t, ok)
}

func TestMeanBig(t *testing.T) {
	assert.Equal(t, big.NewInt(2), MeanBig([]*big.Int{big.NewInt(1), big.NewInt(3), nil}))
	assert.Equal(t, big.NewInt(0), MeanBig(nil))
}

func TestMaxBig(t *testing.T) {
	assert.Equal(t, big.NewInt(5), MaxBig(big.NewInt(5), big.NewInt(3)))
	assert.Equal(t, big.NewInt(3), MaxBig(nil, big.NewInt(3)))
}
