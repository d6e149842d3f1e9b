// Package registry resolves which implementation handles a network.
// A Registry is built once from a list of implementations by probing each
// implementation's capability predicate over every declared network, so that
// dispatch afterwards is a single map lookup and "no implementation" is one
// well-defined outcome.
package registry

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
)

var (
	// ErrDuplicateImplementation is returned when two implementations claim the same network
	ErrDuplicateImplementation = errors.New("more than one implementation supports chain")
	// ErrImplementationNotFound is returned when no implementation supports the network
	ErrImplementationNotFound = errors.New("no implementation supports chain")
)

// Registry maps networks to the implementation that handles them.
// A Registry is immutable after New and safe for concurrent use.
type Registry[T chain.Supporter] struct {
	impls  map[chain.Chain]T
	chains []chain.Chain
}

// New builds a registry over the given networks.
//
// Parameters:
//   - chains: The networks to check, usually chain.All()
//   - impls: The implementations, in any order
//
// Returns:
//   - *Registry[T]: The resolved registry
//   - error: ErrDuplicateImplementation if two implementations claim one network
func New[T chain.Supporter](chains []chain.Chain, impls ...T) (*Registry[T], error) {
	r := &Registry[T]{impls: make(map[chain.Chain]T, len(chains))}
	for _, c := range chains {
		found := -1
		for i, impl := range impls {
			if !impl.Supported(c) {
				continue
			}
			if found >= 0 {
				return nil, fmt.Errorf("%w %s: implementations %d and %d", ErrDuplicateImplementation, c, found, i)
			}
			found = i
		}
		if found >= 0 {
			r.impls[c] = impls[found]
			r.chains = append(r.chains, c)
		}
	}
	return r, nil
}

// Get returns the implementation for the network.
func (r *Registry[T]) Get(c chain.Chain) (T, error) {
	impl, ok := r.impls[c]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w %s", ErrImplementationNotFound, c)
	}
	return impl, nil
}

// Supported reports whether an implementation is registered for the network.
func (r *Registry[T]) Supported(c chain.Chain) bool {
	_, ok := r.impls[c]
	return ok
}

// Chains returns the supported networks in the order they were checked.
func (r *Registry[T]) Chains() []chain.Chain {
	out := make([]chain.Chain, len(r.chains))
	copy(out, r.chains)
	return out
}
