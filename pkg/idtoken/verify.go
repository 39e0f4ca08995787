// Package idtoken verifies compact RS256 OpenID Connect ID tokens against a
// known RSA-2048 public key.
//
// VerifyToken is a pure function: it holds no state and is safe for
// concurrent use. Malformed input fails with an error whose kind is reported
// by Kind; a signature that does not verify yields Result.Valid == false.
package idtoken

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/redhat-et/idbind/pkg/base64url"
	"github.com/redhat-et/idbind/pkg/claims"
	"github.com/redhat-et/idbind/pkg/pkcs1"
)

// MaxTokenLength bounds the work done for a single token
const MaxTokenLength = 8192

// Result is the outcome of a verification. Header and Payload are populated
// whether or not the signature is valid; callers must only trust them when
// Valid is true.
type Result struct {
	Valid   bool           `json:"valid"`
	Header  claims.Header  `json:"header"`
	Payload claims.Payload `json:"payload"`
}

// Segments holds the three encoded parts of a compact token
type Segments struct {
	Header    string
	Payload   string
	Signature string
}

// SigningInput returns the exact text covered by the signature
func (s Segments) SigningInput() string {
	return s.Header + "." + s.Payload
}

// Split splits a compact token into its three non-empty segments
func Split(token string) (Segments, error) {
	if len(token) > MaxTokenLength {
		return Segments{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTokenTooLarge, len(token), MaxTokenLength)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Segments{}, fmt.Errorf("%w: %d segments, want 3", ErrTokenMalformed, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return Segments{}, fmt.Errorf("%w: segment %d is empty", ErrTokenMalformed, i)
		}
	}
	return Segments{Header: parts[0], Payload: parts[1], Signature: parts[2]}, nil
}

// VerifyToken decodes token, extracts its header and payload claims and
// checks the RS256 signature over the encoded signing input with key
func VerifyToken(token string, key PublicKey) (*Result, error) {
	seg, err := Split(token)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256([]byte(seg.SigningInput()))

	headerJSON, err := base64url.Decode(seg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	payloadJSON, err := base64url.Decode(seg.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	signature, err := base64url.Decode(seg.Signature)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}

	header, err := claims.GetToken(headerJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	payload, err := claims.GetToken(payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}

	valid, err := pkcs1.Verify(digest[:], signature, key.Exponent, key.Modulus)
	if err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}

	return &Result{
		Valid:   valid,
		Header:  header.Header,
		Payload: payload.Payload,
	}, nil
}

// ParseHeader decodes only the header segment. It is used to select the
// verification key by kid before VerifyToken runs; nothing it returns is
// authenticated.
func ParseHeader(token string) (claims.Header, error) {
	seg, err := Split(token)
	if err != nil {
		return claims.Header{}, err
	}
	raw, err := base64url.Decode(seg.Header)
	if err != nil {
		return claims.Header{}, fmt.Errorf("failed to decode header: %w", err)
	}
	tok, err := claims.GetToken(raw)
	if err != nil {
		return claims.Header{}, fmt.Errorf("failed to parse header: %w", err)
	}
	return tok.Header, nil
}
