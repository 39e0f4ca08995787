package idtoken

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublicKeyInvariants(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	n := priv.N.Bytes()
	e := big.NewInt(int64(priv.E)).Bytes()

	key, err := NewPublicKey(append([]byte{0, 0}, n...), e)
	require.NoError(t, err)
	assert.Len(t, key.Modulus, KeyBytes)
	assert.Zero(t, priv.N.Cmp(key.RSA().N))
	assert.Equal(t, priv.E, key.RSA().E)

	even := new(big.Int).SetBit(new(big.Int).Set(priv.N), 0, 0).Bytes()
	_, err = NewPublicKey(even, e)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewPublicKey(n[1:], e)
	assert.ErrorIs(t, err, ErrInvalidKey, "2040-bit modulus")

	small, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	_, err = FromRSA(&small.PublicKey)
	assert.ErrorIs(t, err, ErrInvalidKey)

	for _, bad := range [][]byte{{0x01}, {0x02}, {0x01, 0x00, 0x00}, nil} {
		_, err = NewPublicKey(n, bad)
		assert.ErrorIs(t, err, ErrInvalidKey, "exponent %x", bad)
	}

	_, err = NewPublicKey(n, []byte{0x03})
	assert.NoError(t, err)
}

func TestParsePublicKeyRejectsBadEncoding(t *testing.T) {
	_, err := ParsePublicKey("A", "AQAB")
	require.Error(t, err)
	assert.Equal(t, KindInvalidBase64, Kind(err))
}
