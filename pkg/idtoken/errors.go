package idtoken

import (
	"errors"

	"github.com/redhat-et/idbind/pkg/base64url"
	"github.com/redhat-et/idbind/pkg/claims"
	"github.com/redhat-et/idbind/pkg/pkcs1"
)

var (
	// ErrTokenMalformed is returned unless the token splits into exactly
	// three non-empty segments
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenTooLarge is returned for input longer than MaxTokenLength
	ErrTokenTooLarge = errors.New("token too large")
)

// Error kinds reported to API callers. A signature that does not verify is
// not an error and has no kind.
const (
	KindInvalidBase64         = "InvalidBase64"
	KindTokenMalformed        = "TokenMalformed"
	KindTokenTooLarge         = "TokenTooLarge"
	KindMalformedJSON         = "MalformedJson"
	KindInvalidLength         = "InvalidLength"
	KindInvalidSignatureRange = "InvalidSignatureRange"
	KindInvalidKey            = "InvalidKey"
)

var kinds = []struct {
	err  error
	kind string
}{
	{base64url.ErrInvalidBase64, KindInvalidBase64},
	{ErrTokenMalformed, KindTokenMalformed},
	{ErrTokenTooLarge, KindTokenTooLarge},
	{claims.ErrMalformedJSON, KindMalformedJSON},
	{pkcs1.ErrInvalidLength, KindInvalidLength},
	{pkcs1.ErrInvalidSignatureRange, KindInvalidSignatureRange},
	{ErrInvalidKey, KindInvalidKey},
}

// Kind returns the input-validation kind of err, or "" when err is nil or
// not one of the verification errors
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}
