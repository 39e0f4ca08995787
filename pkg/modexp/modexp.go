// Package modexp computes base^exponent mod modulus for RSA public-key
// operations.
//
// Two paths are provided. Exp is a generic left-to-right binary
// square-and-multiply that reduces after every step. ExpF4 is specialised
// for the public exponent 65537 = 2^16 + 1: sixteen squarings of the base
// followed by a single multiply by the original base, with no exponent bit
// scanning. ModExp picks the fast path whenever it applies; both paths
// produce identical results for 65537.
package modexp

import (
	"errors"
	"math/big"
)

var (
	// ErrZeroModulus is returned when the modulus is not positive
	ErrZeroModulus = errors.New("modulus must be positive")
	// ErrBaseOutOfRange is returned when the base is negative or not below the modulus
	ErrBaseOutOfRange = errors.New("base must satisfy 0 <= base < modulus")
)

// F4 is the Fermat prime 65537, the near-universal RSA public exponent
const F4 = 1<<16 + 1

var f4 = big.NewInt(F4)

// ModExp validates its operands and returns base^exponent mod modulus,
// using ExpF4 when exponent is 65537
func ModExp(base, exponent, modulus *big.Int) (*big.Int, error) {
	if modulus.Sign() <= 0 {
		return nil, ErrZeroModulus
	}
	if base.Sign() < 0 || base.Cmp(modulus) >= 0 {
		return nil, ErrBaseOutOfRange
	}
	if exponent.Sign() < 0 {
		return nil, errors.New("exponent must be non-negative")
	}
	if exponent.Cmp(f4) == 0 {
		return ExpF4(base, modulus), nil
	}
	return Exp(base, exponent, modulus), nil
}

// Exp returns base^exponent mod modulus by scanning exponent from its most
// significant bit down. The caller guarantees 0 <= base < modulus and a
// non-negative exponent.
func Exp(base, exponent, modulus *big.Int) *big.Int {
	result := new(big.Int).Mod(big.NewInt(1), modulus)
	for i := exponent.BitLen() - 1; i >= 0; i-- {
		result.Mul(result, result)
		result.Mod(result, modulus)
		if exponent.Bit(i) == 1 {
			result.Mul(result, base)
			result.Mod(result, modulus)
		}
	}
	return result
}

// ExpF4 returns base^65537 mod modulus with exactly 16 squarings and one
// multiplication
func ExpF4(base, modulus *big.Int) *big.Int {
	result := new(big.Int).Set(base)
	for i := 0; i < 16; i++ {
		result.Mul(result, result)
		result.Mod(result, modulus)
	}
	result.Mul(result, base)
	return result.Mod(result, modulus)
}

// ModExpBytes is ModExp over big-endian unsigned byte strings. The result is
// left-padded with zeros to the byte width of modulus.
func ModExpBytes(base, exponent, modulus []byte) ([]byte, error) {
	n := new(big.Int).SetBytes(modulus)
	m, err := ModExp(new(big.Int).SetBytes(base), new(big.Int).SetBytes(exponent), n)
	if err != nil {
		return nil, err
	}
	return m.FillBytes(make([]byte, len(modulus))), nil
}
