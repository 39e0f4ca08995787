// Package pkcs1 checks RSASSA-PKCS1-v1_5 signatures over SHA-256 digests.
//
// Malformed operands (mismatched lengths, a signature outside [0, n)) are
// reported as errors. Every other failure, whether a broken padding layout,
// a different hash algorithm or a wrong digest, collapses into a plain
// false so callers cannot tell which part of a forgery was rejected.
package pkcs1

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"

	"github.com/redhat-et/idbind/pkg/modexp"
)

var (
	// ErrInvalidLength is returned when the signature and modulus widths
	// differ, the digest is not 32 bytes, or the modulus is too short to hold
	// the padding
	ErrInvalidLength = errors.New("invalid length")
	// ErrInvalidSignatureRange is returned when the signature integer is not
	// below the modulus
	ErrInvalidSignatureRange = errors.New("signature out of range")
)

// sha256Prefix is the DER encoding of the DigestInfo header for SHA-256:
// SEQUENCE { SEQUENCE { OID 2.16.840.1.101.3.4.2.1, NULL }, OCTET STRING (32) }
var sha256Prefix = []byte{
	0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01,
	0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20,
}

// MinPadding is the minimum number of 0xFF bytes required by the encoding
const MinPadding = 8

// MinModulusLen is the smallest modulus able to carry a SHA-256 signature
const MinModulusLen = 3 + MinPadding + 19 + sha256.Size

// PaddingLen returns the length of the 0xFF run for a modulus of k bytes
func PaddingLen(k int) int {
	return k - 3 - len(sha256Prefix) - sha256.Size
}

// Verify reports whether signature is a valid PKCS#1 v1.5 signature of
// digest under the public key (exponent, modulus). All integers are
// big-endian and unsigned; signature must have the same width as modulus.
func Verify(digest, signature, exponent, modulus []byte) (bool, error) {
	if len(digest) != sha256.Size {
		return false, fmt.Errorf("%w: digest is %d bytes, want %d", ErrInvalidLength, len(digest), sha256.Size)
	}
	k := len(modulus)
	if len(signature) != k {
		return false, fmt.Errorf("%w: signature is %d bytes, modulus is %d", ErrInvalidLength, len(signature), k)
	}
	if k < MinModulusLen {
		return false, fmt.Errorf("%w: modulus of %d bytes cannot hold a SHA-256 signature", ErrInvalidLength, k)
	}

	n := new(big.Int).SetBytes(modulus)
	s := new(big.Int).SetBytes(signature)
	if s.Cmp(n) >= 0 {
		return false, ErrInvalidSignatureRange
	}

	m, err := modexp.ModExp(s, new(big.Int).SetBytes(exponent), n)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignatureRange, err)
	}

	em := m.FillBytes(make([]byte, k))
	return subtle.ConstantTimeCompare(em, Encode(digest, k)) == 1, nil
}

// Encode builds the expected encoded message EM for digest and a modulus of
// k bytes: 00 01 FF..FF 00 DigestInfo digest. k must be at least
// MinModulusLen and digest 32 bytes long.
func Encode(digest []byte, k int) []byte {
	em := make([]byte, k)
	em[1] = 0x01
	ps := PaddingLen(k)
	for i := 2; i < 2+ps; i++ {
		em[i] = 0xff
	}
	off := 2 + ps + 1
	off += copy(em[off:], sha256Prefix)
	copy(em[off:], digest)
	return em
}
