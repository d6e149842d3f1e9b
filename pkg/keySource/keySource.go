// Package keySource provides the private key material a caller hands to signing.
// The engine never stores keys; a KeySource is read once per signing call and
// the caller zeroes the returned bytes when done.
package keySource

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyKey is returned when a source holds no key material
	ErrEmptyKey = errors.New("private key is empty")
)

// IKeySource defines the interface for private key providers.
type IKeySource interface {
	// PrivateKey returns a fresh copy of the key bytes. The caller owns the copy.
	PrivateKey(ctx context.Context) ([]byte, error)
}

// HexKeySource holds a key parsed from hex input.
type HexKeySource struct {
	key []byte
}

// NewHexKeySource parses a hex encoded private key, with or without 0x prefix.
//
// Parameters:
//   - s: The hex encoded key
//
// Returns:
//   - *HexKeySource: The key source
//   - error: An error if the input is empty or not hex
func NewHexKeySource(s string) (*HexKeySource, error) {
	key, err := decodeHexKey(s)
	if err != nil {
		return nil, err
	}
	return &HexKeySource{key: key}, nil
}

func (s *HexKeySource) PrivateKey(_ context.Context) ([]byte, error) {
	if len(s.key) == 0 {
		return nil, ErrEmptyKey
	}
	out := make([]byte, len(s.key))
	copy(out, s.key)
	return out, nil
}

// Close zeroes the held key.
func (s *HexKeySource) Close() {
	Zero(s.key)
	s.key = nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func decodeHexKey(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, ErrEmptyKey
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("private key is not hex: %w", err)
	}
	return key, nil
}
