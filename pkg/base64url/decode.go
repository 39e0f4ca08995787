// Package base64url decodes the unpadded URL-safe base64 segments of a
// compact JWT.
package base64url

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidBase64 is returned for a segment with an impossible length or a
// character outside the URL-safe alphabet
var ErrInvalidBase64 = errors.New("invalid base64url")

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

const invalid = 0xff

// decodeMap maps an input byte to its 6-bit value, or invalid
var decodeMap = func() [256]byte {
	var m [256]byte
	for i := range m {
		m[i] = invalid
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = byte(i)
	}
	return m
}()

// tailBytes is the number of output bytes produced by a trailing group of
// len%4 characters. A single trailing character carries only 6 bits and can
// never encode a byte.
var tailBytes = [4]int{0, -1, 1, 2}

// DecodedLen returns the exact number of bytes n characters decode to, or -1
// when n is not a valid unpadded length
func DecodedLen(n int) int {
	tail := tailBytes[n%4]
	if tail < 0 {
		return -1
	}
	return n/4*3 + tail
}

// Decode decodes one unpadded base64url segment
func Decode(segment string) ([]byte, error) {
	outLen := DecodedLen(len(segment))
	if outLen < 0 {
		return nil, fmt.Errorf("%w: length %d leaves a dangling character", ErrInvalidBase64, len(segment))
	}

	out := make([]byte, outLen)
	si, di := 0, 0

	for ; si+4 <= len(segment); si, di = si+4, di+3 {
		v, err := group(segment, si, 4)
		if err != nil {
			return nil, err
		}
		out[di] = byte(v >> 16)
		out[di+1] = byte(v >> 8)
		out[di+2] = byte(v)
	}

	switch len(segment) - si {
	case 2:
		v, err := group(segment, si, 2)
		if err != nil {
			return nil, err
		}
		out[di] = byte(v >> 4)
	case 3:
		v, err := group(segment, si, 3)
		if err != nil {
			return nil, err
		}
		out[di] = byte(v >> 10)
		out[di+1] = byte(v >> 2)
	}

	return out, nil
}

// group packs n characters starting at off into the low 6*n bits of a word
func group(segment string, off, n int) (uint32, error) {
	var v uint32
	for i := off; i < off+n; i++ {
		d := decodeMap[segment[i]]
		if d == invalid {
			return 0, fmt.Errorf("%w: illegal character %q at offset %d", ErrInvalidBase64, segment[i], i)
		}
		v = v<<6 | uint32(d)
	}
	return v, nil
}

// Encode is the inverse of Decode
func Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
