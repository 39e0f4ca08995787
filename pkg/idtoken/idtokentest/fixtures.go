// Package idtokentest provides ID token fixtures and a token minting helper
// for tests.
package idtokentest

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// A Google ID token captured on 2024-03-26 together with the Google signing
// key that produced it (kid adf5e710edfebecbefa9a61495654d03c0b8edf8)
const (
	GoogleToken = "eyJhbGciOiJSUzI1NiIsImtpZCI6ImFkZjVlNzEwZWRmZWJlY2JlZmE5YTYxNDk1NjU0ZDAzYzBiOGVkZjgiLCJ0eXAiOiJKV1QifQ.eyJpc3MiOiJodHRwczovL2FjY291bnRzLmdvb2dsZS5jb20iLCJhenAiOiIyMjIwMzc4MzcxNTQtcG5oNXJkcjhkOWh2Zmo5aW9vcmU2YW1iMGdxczRiajkuYXBwcy5nb29nbGV1c2VyY29udGVudC5jb20iLCJhdWQiOiIyMjIwMzc4MzcxNTQtcG5oNXJkcjhkOWh2Zmo5aW9vcmU2YW1iMGdxczRiajkuYXBwcy5nb29nbGV1c2VyY29udGVudC5jb20iLCJzdWIiOiIxMDE5ODkxODYwMDE4MjUxMDI1NTAiLCJlbWFpbCI6IjB4bWF4eXpAZ21haWwuY29tIiwiZW1haWxfdmVyaWZpZWQiOnRydWUsIm5vbmNlIjoieGlvbmJsYWhibGFoYmxhaGJsYWhibGFoYmxhaCIsIm5iZiI6MTcxMTQ2MDUwMiwibmFtZSI6Ik1heCIsInBpY3R1cmUiOiJodHRwczovL2xoMy5nb29nbGV1c2VyY29udGVudC5jb20vYS9BQ2c4b2NKUDhEVWZueEptWjQ1SUN3YkJHaHhWUHIxMWZ1YUZ2czJFVE1FaHp2Y1BSdz1zOTYtYyIsImdpdmVuX25hbWUiOiJNYXgiLCJpYXQiOjE3MTE0NjA4MDIsImV4cCI6MTcxMTQ2NDQwMiwianRpIjoiNWNhYWU5MGY3NzY1ZDNkNGE2ZGNjOTBmYWVjZmRkMWZlYjY2OTk4ZCJ9.s9BYIZaIIlHzDL7cYvWNn6jyeKQa0PIgi3O8-CvEwrCr2AK7Y62Gv87tN_Ic32Dk7wL-KWI10Xg5RkBW03F8i400ZYTIdhWk2cNHxbDDLK_5AwaOI3lVEjtN_hUz14ESTpRTIBoAXRl7fsXrMXM3kfxpj7R7ILoO8RYMWiaOiCN2zjnHINRdNQFuSZrDcgtRuel2IZlMaCYZN_Tw8KEr5JsyiAephAq5EOChnrBkMaVHRLTwrSJVn_bayPmMnE7ZhcbCI99J6RqAs9u2YTOMp3d2OVCGPeCbuTq2nbmVtYSeXm-mqwdEyo2i8avdlEwKzJVKp87_syLf_PrxTDZOFA"

	GoogleKid      = "adf5e710edfebecbefa9a61495654d03c0b8edf8"
	GoogleModulus  = "y48N6JB-AKq1-Rv4SkwBADU-hp4zXHU-NcCUwxD-aS9vr4EoT9qrjoJ-YmkaEpq9Bmu1yXZZK_h_9QS3xEsO8Rc_WSvIQCJtIaDQz8hxk4lUjUQjMB4Zf9vdTmf8KdktI9tCYCbuSbLC6TegjDM9kbl9CNs3m9wSVeO_5JXJQC0Jr-Oj7Gz9stXm0Co3f7RCxrD08kLelXaAglrd5TeGjZMyViC4cw1gPaj0Cj6knDn8UlzR_WuBpzs_ies5BrbzX-yht0WfnhXpdpiGNMbpKQD04MmPdMCYq8ENF7q5_Ok7dPsVj1vHA6vFGnf7qE3smD157szsnzn0NeXIbRMnuQ"
	GoogleExponent = "AQAB"

	// OtherGoogleModulus is a second Google signing key that did not sign
	// GoogleToken
	OtherGoogleModulus = "vdtZ3cfuh44JlWkJRu-3yddVp58zxSHwsWiW_jpaXgpebo0an7qY2IEs3D7kC186Bwi0T7Km9mUcDbxod89IbtZuQQuhxlgaXB-qX9GokNLdqg69rUaealXGrCdKOQ-rOBlNNGn3M4KywEC98KyQAKXe7prs7yGqI_434rrULaE7ZFmLAzsYNoZ_8l53SGDiRaUrZkhxXOEhlv1nolgYGIH2lkhEZ5BlU53BfzwjO-bLeMwxJIZxSIOy8EBIMLP7eVu6AIkAr9MaDPJqeF7n7Cn8yv_qmy51bV-INRS-HKRVriSoUxhQQTbvDYYvJzHGYu_ciJ4oRYKkDEwxXztUew"

	GoogleIssuer   = "https://accounts.google.com"
	GoogleAudience = "222037837154-pnh5rdr8d9hvfj9ioore6amb0gqs4bj9.apps.googleusercontent.com"
	GoogleSubject  = "101989186001825102550"
	GoogleEmail    = "0xmaxyz@gmail.com"
)

// GoogleIssuedAt is the iat of GoogleToken; its exp is one hour later
var GoogleIssuedAt = time.Unix(1711460802, 0)

// Signer mints RS256 tokens with a freshly generated RSA-2048 key
type Signer struct {
	t   testing.TB
	Key *rsa.PrivateKey
	Kid string
}

// NewSigner generates a signing key
func NewSigner(t testing.TB, kid string) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return &Signer{t: t, Key: key, Kid: kid}
}

// Claims returns a claim set valid for one hour from now
func (s *Signer) Claims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            GoogleIssuer,
		"aud":            GoogleAudience,
		"azp":            GoogleAudience,
		"sub":            sub,
		"email":          sub + "@example.com",
		"email_verified": true,
		"iat":            now.Unix(),
		"nbf":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

// Sign returns the compact serialisation of claims
func (s *Signer) Sign(claims jwt.MapClaims) string {
	s.t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.Kid

	signed, err := token.SignedString(s.Key)
	if err != nil {
		s.t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}
