package modexp

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomOddModulus(t *testing.T, bits int) *big.Int {
	t.Helper()
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
	require.NoError(t, err)
	n.SetBit(n, bits-1, 1)
	n.SetBit(n, 0, 1)
	return n
}

func randomBelow(t *testing.T, n *big.Int) *big.Int {
	t.Helper()
	v, err := rand.Int(rand.Reader, n)
	require.NoError(t, err)
	return v
}

func TestExpF4MatchesGenericPath(t *testing.T) {
	for i := 0; i < 20; i++ {
		n := randomOddModulus(t, 2048)
		base := randomBelow(t, n)

		fast := ExpF4(base, n)
		generic := Exp(base, big.NewInt(F4), n)
		want := new(big.Int).Exp(base, big.NewInt(F4), n)

		assert.Zero(t, fast.Cmp(generic), "fast and generic paths diverge")
		assert.Zero(t, generic.Cmp(want), "generic path diverges from math/big")
	}
}

func TestExpArbitraryExponents(t *testing.T) {
	n := randomOddModulus(t, 1024)
	exponents := []*big.Int{
		big.NewInt(0), big.NewInt(1), big.NewInt(2), big.NewInt(3),
		big.NewInt(17), big.NewInt(65535), big.NewInt(65539),
		randomBelow(t, n),
	}
	for _, e := range exponents {
		base := randomBelow(t, n)
		want := new(big.Int).Exp(base, e, n)
		assert.Zero(t, Exp(base, e, n).Cmp(want), "exponent %s", e)
	}
}

func TestExpEdgeBases(t *testing.T) {
	n := big.NewInt(97)
	assert.Equal(t, int64(0), Exp(big.NewInt(0), big.NewInt(5), n).Int64())
	assert.Equal(t, int64(1), Exp(big.NewInt(1), big.NewInt(F4), n).Int64())
	assert.Equal(t, int64(96), ExpF4(big.NewInt(96), n).Int64())
	assert.Equal(t, int64(0), Exp(big.NewInt(0), big.NewInt(0), big.NewInt(1)).Int64())
}

func TestModExpValidatesOperands(t *testing.T) {
	n := big.NewInt(97)

	_, err := ModExp(big.NewInt(97), big.NewInt(3), n)
	assert.ErrorIs(t, err, ErrBaseOutOfRange)

	_, err = ModExp(big.NewInt(-1), big.NewInt(3), n)
	assert.ErrorIs(t, err, ErrBaseOutOfRange)

	_, err = ModExp(big.NewInt(2), big.NewInt(3), big.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroModulus)

	got, err := ModExp(big.NewInt(5), big.NewInt(F4), n)
	require.NoError(t, err)
	assert.Zero(t, got.Cmp(new(big.Int).Exp(big.NewInt(5), big.NewInt(F4), n)))
}

func TestModExpBytesPadsToModulusWidth(t *testing.T) {
	modulus := []byte{0x00, 0x00, 0x61} // 97 in three bytes
	got, err := ModExpBytes([]byte{0x02}, []byte{0x01}, modulus)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x02}, got)
}

func BenchmarkExpF4(b *testing.B) {
	n, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 2048))
	n.SetBit(n, 2047, 1)
	n.SetBit(n, 0, 1)
	base, _ := rand.Int(rand.Reader, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ExpF4(base, n)
	}
}

func BenchmarkExpGeneric(b *testing.B) {
	n, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 2048))
	n.SetBit(n, 2047, 1)
	n.SetBit(n, 0, 1)
	base, _ := rand.Int(rand.Reader, n)
	e := big.NewInt(F4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Exp(base, e, n)
	}
}
