// Package claims extracts a fixed set of OIDC header and payload claims from
// decoded JWT JSON in a single linear pass.
package claims

// Header holds the JOSE header fields of an ID token
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ"`
}

// Payload holds the ID token claims that downstream binding logic relies on
type Payload struct {
	Iss           string `json:"iss"`
	Azp           string `json:"azp"`
	Aud           string `json:"aud"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Nonce         string `json:"nonce"`
	Nbf           int64  `json:"nbf"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	GivenName     string `json:"given_name"`
	Iat           int64  `json:"iat"`
	Exp           int64  `json:"exp"`
	Jti           string `json:"jti"`
}

// Token is the union of header and payload claims. Scanning a header leaves
// the payload fields zero and vice versa.
type Token struct {
	Header
	Payload
}

type kind int

const (
	kindString kind = iota
	kindInt
	kindBool
	kindAudience
)

type field struct {
	kind kind
	str  func(*Token) *string
	num  func(*Token) *int64
	flag func(*Token) *bool
}

func strField(f func(*Token) *string) field { return field{kind: kindString, str: f} }
func intField(f func(*Token) *int64) field  { return field{kind: kindInt, num: f} }

// fields is the claim allow-list. Any other key is skipped.
var fields = map[string]field{
	"alg":            strField(func(t *Token) *string { return &t.Alg }),
	"kid":            strField(func(t *Token) *string { return &t.Kid }),
	"typ":            strField(func(t *Token) *string { return &t.Typ }),
	"iss":            strField(func(t *Token) *string { return &t.Iss }),
	"azp":            strField(func(t *Token) *string { return &t.Azp }),
	"aud":            {kind: kindAudience, str: func(t *Token) *string { return &t.Aud }},
	"sub":            strField(func(t *Token) *string { return &t.Sub }),
	"email":          strField(func(t *Token) *string { return &t.Email }),
	"email_verified": {kind: kindBool, flag: func(t *Token) *bool { return &t.EmailVerified }},
	"nonce":          strField(func(t *Token) *string { return &t.Nonce }),
	"nbf":            intField(func(t *Token) *int64 { return &t.Nbf }),
	"name":           strField(func(t *Token) *string { return &t.Name }),
	"picture":        strField(func(t *Token) *string { return &t.Picture }),
	"given_name":     strField(func(t *Token) *string { return &t.GivenName }),
	"iat":            intField(func(t *Token) *int64 { return &t.Iat }),
	"exp":            intField(func(t *Token) *int64 { return &t.Exp }),
	"jti":            strField(func(t *Token) *string { return &t.Jti }),
}

// Known reports whether key is one of the extracted claims
func Known(key string) bool {
	_, ok := fields[key]
	return ok
}
