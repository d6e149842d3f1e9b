// Package util holds small generic helpers shared by the per-chain implementations.
package util

import "math/big"

// Map applies mapper to every element of coll and returns the results in order.
// mapper also receives the element's index.
func Map[A any, B any](coll []A, mapper func(i A, index uint64) B) []B {
	out := make([]B, len(coll))
	for i, item := range coll {
		out[i] = mapper(item, uint64(i))
	}
	return out
}

// Filter returns the elements of coll for which keep returns true, preserving order.
func Filter[A any](coll []A, keep func(i A) bool) []A {
	out := make([]A, 0, len(coll))
	for _, item := range coll {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Find returns the first element of coll that satisfies criteria.
//
// Returns:
//   - A: The matching element, or the zero value
//   - bool: Whether a match was found
func Find[A any](coll []A, criteria func(i A) bool) (A, bool) {
	for _, item := range coll {
		if criteria(item) {
			return item, true
		}
	}
	var zero A
	return zero, false
}

// MeanBig returns the integer mean of values, ignoring nil entries. The mean of
// no values is zero.
func MeanBig(values []*big.Int) *big.Int {
	sum := new(big.Int)
	n := int64(0)
	for _, v := range values {
		if v == nil {
			continue
		}
		sum.Add(sum, v)
		n++
	}
	if n == 0 {
		return sum
	}
	return sum.Div(sum, big.NewInt(n))
}

// MaxBig returns the larger of a and b. A nil argument is treated as zero.
func MaxBig(a, b *big.Int) *big.Int {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
