package idtoken

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/redhat-et/idbind/pkg/base64url"
)

// KeyBits is the only supported RSA modulus width
const KeyBits = 2048

// KeyBytes is the modulus and signature width in bytes
const KeyBytes = KeyBits / 8

// ErrInvalidKey is returned for a public key that violates the fixed-width
// RSA-2048 invariants
var ErrInvalidKey = errors.New("invalid public key")

// PublicKey is an RSA-2048 public key held as big-endian unsigned integers.
// Modulus is always exactly KeyBytes long.
type PublicKey struct {
	Modulus  []byte
	Exponent []byte
}

// NewPublicKey checks the key invariants: a 2048-bit odd modulus with its
// top bit set and an odd exponent of at least 3. Leading zero bytes are
// accepted on both inputs and the modulus is normalised to KeyBytes.
func NewPublicKey(modulus, exponent []byte) (PublicKey, error) {
	n := new(big.Int).SetBytes(modulus)
	if n.BitLen() != KeyBits {
		return PublicKey{}, fmt.Errorf("%w: modulus is %d bits, want %d", ErrInvalidKey, n.BitLen(), KeyBits)
	}
	if n.Bit(0) == 0 {
		return PublicKey{}, fmt.Errorf("%w: modulus is even", ErrInvalidKey)
	}
	e := new(big.Int).SetBytes(exponent)
	if e.Cmp(big.NewInt(3)) < 0 || e.Bit(0) == 0 {
		return PublicKey{}, fmt.Errorf("%w: exponent must be odd and at least 3", ErrInvalidKey)
	}
	return PublicKey{
		Modulus:  n.FillBytes(make([]byte, KeyBytes)),
		Exponent: e.Bytes(),
	}, nil
}

// ParsePublicKey builds a key from the base64url "n" and "e" members of a JWK
func ParsePublicKey(n, e string) (PublicKey, error) {
	modulus, err := base64url.Decode(n)
	if err != nil {
		return PublicKey{}, fmt.Errorf("failed to decode modulus: %w", err)
	}
	exponent, err := base64url.Decode(e)
	if err != nil {
		return PublicKey{}, fmt.Errorf("failed to decode exponent: %w", err)
	}
	return NewPublicKey(modulus, exponent)
}

// FromRSA converts a crypto/rsa public key
func FromRSA(key *rsa.PublicKey) (PublicKey, error) {
	if key == nil || key.N == nil {
		return PublicKey{}, fmt.Errorf("%w: nil key", ErrInvalidKey)
	}
	return NewPublicKey(key.N.Bytes(), big.NewInt(int64(key.E)).Bytes())
}

// RSA converts the key back to crypto/rsa form
func (k PublicKey) RSA() *rsa.PublicKey {
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(k.Modulus),
		E: int(new(big.Int).SetBytes(k.Exponent).Int64()),
	}
}
