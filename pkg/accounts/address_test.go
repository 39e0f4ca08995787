package accounts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeccak256(t *testing.T) {
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", Keccak256().Hex())
	assert.Equal(t, "0x47173285a8d7341e5e972fc677286384f802f8ef42a5ec5f03bbfa254cb01fad", Keccak256([]byte("hello world")).Hex())
	assert.Equal(t, Keccak256([]byte("hello world")), Keccak256([]byte("hello"), []byte(" "), []byte("world")))
}

func TestNameSalt(t *testing.T) {
	assert.Equal(t, Keccak256([]byte("Max")), NameSalt("Max"))
	assert.NotEqual(t, NameSalt("Max"), NameSalt("Maxyz"))
	assert.NotEqual(t, NameSalt("Max"), NameSalt("max"))
}

func TestAddressChecksum(t *testing.T) {
	for _, s := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	} {
		a, err := ParseAddress(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, a.Hex())

		lower, err := ParseAddress(strings.ToLower(s))
		require.NoError(t, err)
		assert.Equal(t, a, lower)

		upper, err := ParseAddress("0x" + strings.ToUpper(s[2:]))
		require.NoError(t, err)
		assert.Equal(t, a, upper)
	}
}

func TestParseAddressErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaedff",
		"0xzzaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", // bad checksum
	} {
		_, err := ParseAddress(s)
		assert.ErrorIs(t, err, ErrInvalidHex, s)
	}
}

func TestHashParse(t *testing.T) {
	h := NameSalt("Max")
	parsed, err := ParseHash(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = ParseHash("0x1234")
	assert.ErrorIs(t, err, ErrInvalidHex)
}

func TestRecordJSON(t *testing.T) {
	owner, err := ParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	rec := Record{Salt: NameSalt("Max"), Owner: owner}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"owner":"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"`)
	assert.Contains(t, string(data), `"salt":"`+NameSalt("Max").Hex()+`"`)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.Salt, back.Salt)
	assert.Equal(t, rec.Owner, back.Owner)
}
