package claims

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	googleHeader  = `{"alg":"RS256","kid":"adf5e710edfebecbefa9a61495654d03c0b8edf8","typ":"JWT"}`
	googlePayload = `{"iss":"https://accounts.google.com","azp":"222037837154-pnh5rdr8d9hvfj9ioore6amb0gqs4bj9.apps.googleusercontent.com","aud":"222037837154-pnh5rdr8d9hvfj9ioore6amb0gqs4bj9.apps.googleusercontent.com","sub":"101989186001825102550","email":"0xmaxyz@gmail.com","email_verified":true,"nonce":"xionblahblahblahblahblahblah","nbf":1711460502,"name":"Max","picture":"https://lh3.googleusercontent.com/a/ACg8ocJP8DUfnxJmZ45ICwbBGhxVPr11fuaFvs2ETMEhzvcPRw=s96-c","given_name":"Max","iat":1711460802,"exp":1711464402,"jti":"5caae90f7765d3d4a6dcc90faecfdd1feb66998d"}`
)

func TestGetTokenHeader(t *testing.T) {
	tok, err := GetToken([]byte(googleHeader))
	require.NoError(t, err)

	assert.Equal(t, Header{Alg: "RS256", Kid: "adf5e710edfebecbefa9a61495654d03c0b8edf8", Typ: "JWT"}, tok.Header)
	assert.Equal(t, Payload{}, tok.Payload)
}

func TestGetTokenPayload(t *testing.T) {
	tok, err := GetToken([]byte(googlePayload))
	require.NoError(t, err)

	want := Payload{
		Iss:           "https://accounts.google.com",
		Azp:           "222037837154-pnh5rdr8d9hvfj9ioore6amb0gqs4bj9.apps.googleusercontent.com",
		Aud:           "222037837154-pnh5rdr8d9hvfj9ioore6amb0gqs4bj9.apps.googleusercontent.com",
		Sub:           "101989186001825102550",
		Email:         "0xmaxyz@gmail.com",
		EmailVerified: true,
		Nonce:         "xionblahblahblahblahblahblah",
		Nbf:           1711460502,
		Name:          "Max",
		Picture:       "https://lh3.googleusercontent.com/a/ACg8ocJP8DUfnxJmZ45ICwbBGhxVPr11fuaFvs2ETMEhzvcPRw=s96-c",
		GivenName:     "Max",
		Iat:           1711460802,
		Exp:           1711464402,
		Jti:           "5caae90f7765d3d4a6dcc90faecfdd1feb66998d",
	}
	assert.Equal(t, want, tok.Payload)
	assert.Equal(t, Header{}, tok.Header)
}

func TestGetTokenKeyOrderIndependent(t *testing.T) {
	a, err := GetToken([]byte(`{"typ":"JWT","kid":"k1","alg":"RS256"}`))
	require.NoError(t, err)
	b, err := GetToken([]byte(`{"alg":"RS256","typ":"JWT","kid":"k1"}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGetTokenDuplicateKeyLastWins(t *testing.T) {
	tok, err := GetToken([]byte(`{"aud":"first","sub":"alice","aud":"second","exp":1,"exp":2,"email_verified":true,"email_verified":false}`))
	require.NoError(t, err)

	assert.Equal(t, "second", tok.Aud)
	assert.Equal(t, "alice", tok.Sub)
	assert.Equal(t, int64(2), tok.Exp)
	assert.False(t, tok.EmailVerified)
}

func TestGetTokenNullResetsClaim(t *testing.T) {
	tok, err := GetToken([]byte(`{"sub":"alice","sub":null,"iat":5,"iat":null}`))
	require.NoError(t, err)
	assert.Empty(t, tok.Sub)
	assert.Zero(t, tok.Iat)
}

func TestGetTokenSkipsUnknownClaims(t *testing.T) {
	input := `{
		"at_hash": "abc",
		"groups": ["eng", {"nested": [1, 2, {"deep": "}]"}]}],
		"address": {"street": "x\"}", "geo": {"lat": -1.5e3, "ok": true, "none": null}},
		"hd": "example.com",
		"sub": "bob",
		"auth_time": 1711460000,
		"amr": []
	}`
	tok, err := GetToken([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "bob", tok.Sub)
	assert.Equal(t, Token{Payload: Payload{Sub: "bob"}}, *tok)
}

func TestGetTokenEscapes(t *testing.T) {
	tok, err := GetToken([]byte(`{"name":"Max \"the\" \\ Verifier","picture":"https:\/\/x","given_name":"é"}`))
	require.NoError(t, err)
	assert.Equal(t, `Max "the" \ Verifier`, tok.Name)
	assert.Equal(t, `https:\/\/x`, tok.Picture)
	assert.Equal(t, `é`, tok.GivenName)
}

func TestGetTokenAudienceArray(t *testing.T) {
	tok, err := GetToken([]byte(`{"aud":["client-a","client-b"]}`))
	require.NoError(t, err)
	assert.Equal(t, "client-a", tok.Aud)

	tok, err = GetToken([]byte(`{"aud":[]}`))
	require.NoError(t, err)
	assert.Empty(t, tok.Aud)
}

func TestGetTokenLenientScalars(t *testing.T) {
	tok, err := GetToken([]byte(`{"email_verified":"true","exp":1711464402.0,"iat":-3}`))
	require.NoError(t, err)
	assert.True(t, tok.EmailVerified)
	assert.Equal(t, int64(1711464402), tok.Exp)
	assert.Equal(t, int64(-3), tok.Iat)
}

func TestGetTokenEmptyObject(t *testing.T) {
	tok, err := GetToken([]byte(" { } "))
	require.NoError(t, err)
	assert.Equal(t, Token{}, *tok)
}

func TestGetTokenMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":                 ``,
		"not an object":         `["alg"]`,
		"missing closing brace": `{"alg":"RS256"`,
		"unterminated string":   `{"alg":"RS256}`,
		"unterminated key":      `{"alg`,
		"truncated escape":      `{"alg":"RS256\`,
		"missing colon":         `{"alg" "RS256"}`,
		"missing value":         `{"alg":}`,
		"trailing comma":        `{"alg":"RS256",}`,
		"trailing data":         `{"alg":"RS256"} {}`,
		"unbalanced nested":     `{"x":{"y":[1,2}}`,
		"unterminated nested":   `{"x":{"y":[1,2]}`,
		"extra closing brace":   `{"alg":"RS256"}}`,
		"bad literal":           `{"x":tru}`,
		"string claim as int":   `{"sub":42}`,
		"int claim as string":   `{"exp":"42"}`,
		"bool claim as number":  `{"email_verified":1}`,
		"audience of numbers":   `{"aud":[1]}`,
		"escaped key":           `{"\u0061ud":"x"}`,
		"number overflow":       `{"exp":1e400}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := GetToken([]byte(input))
			assert.ErrorIs(t, err, ErrMalformedJSON)
		})
	}
}

func TestGetTokenDeepNestingDoesNotRecurse(t *testing.T) {
	depth := 100000
	input := `{"x":` + strings.Repeat("[", depth) + strings.Repeat("]", depth) + `,"sub":"deep"}`
	tok, err := GetToken([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "deep", tok.Sub)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("email_verified"))
	assert.True(t, Known("kid"))
	assert.False(t, Known("groups"))
}

func BenchmarkGetTokenPayload(b *testing.B) {
	data := []byte(googlePayload)
	for i := 0; i < b.N; i++ {
		if _, err := GetToken(data); err != nil {
			b.Fatal(err)
		}
	}
}
