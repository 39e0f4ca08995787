package accounts

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrInvalidHex is returned for malformed address or hash text
var ErrInvalidHex = errors.New("invalid hex value")

// Address is a 20-byte account address
type Address [20]byte

// Hash is a 32-byte Keccak-256 value. Salts are hashes.
type Hash [32]byte

// Keccak256 hashes the concatenation of data
func Keccak256(data ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	d.Sum(h[:0])
	return h
}

// NameSalt derives the account salt for a human-readable name as
// keccak256(utf8(name))
func NameSalt(name string) Hash {
	return Keccak256([]byte(name))
}

// Hex returns the address in EIP-55 mixed-case checksum form
func (a Address) Hex() string {
	lower := hex.EncodeToString(a[:])
	sum := Keccak256([]byte(lower))

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

func (a Address) String() string { return a.Hex() }

// IsZero reports whether a is the zero address
func (a Address) IsZero() bool { return a == Address{} }

// MarshalText implements encoding.TextMarshaler
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a 0x-prefixed 40-digit hex address. All-lower and
// all-upper input is accepted as is; mixed case must carry a valid EIP-55
// checksum.
func ParseAddress(s string) (Address, error) {
	var a Address
	digits, err := decodeHex(s, a[:])
	if err != nil {
		return Address{}, err
	}
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if a.Hex()[2:] != digits {
			return Address{}, fmt.Errorf("%w: bad address checksum %q", ErrInvalidHex, s)
		}
	}
	return a, nil
}

// Hex returns the 0x-prefixed lower-case form
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// MarshalText implements encoding.TextMarshaler
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash parses a 0x-prefixed 64-digit hex value
func ParseHash(s string) (Hash, error) {
	var h Hash
	if _, err := decodeHex(s, h[:]); err != nil {
		return Hash{}, err
	}
	return h, nil
}

func decodeHex(s string, dst []byte) (string, error) {
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok {
		digits, ok = strings.CutPrefix(s, "0X")
	}
	if !ok || len(digits) != 2*len(dst) {
		return "", fmt.Errorf("%w: want 0x and %d hex digits, got %q", ErrInvalidHex, 2*len(dst), s)
	}
	if _, err := hex.Decode(dst, []byte(digits)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return digits, nil
}
