// Package keys maps key IDs to the issuer RSA keys that ID tokens are
// verified against. Keys come from configuration or from a JWKS document on
// disk; nothing is fetched over the network.
package keys

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/go-jose/go-jose/v4"

	"github.com/redhat-et/idbind/pkg/idtoken"
)

// ErrUnknownKey is returned when no key is registered for a kid
var ErrUnknownKey = errors.New("unknown signing key")

// Registry is a concurrency-safe kid → key map
type Registry struct {
	mu   sync.RWMutex
	keys map[string]idtoken.PublicKey
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]idtoken.PublicKey)}
}

// Add registers key under kid, replacing any previous key
func (r *Registry) Add(kid string, key idtoken.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[kid] = key
}

// AddEncoded registers a key given as base64url JWK "n" and "e" members
func (r *Registry) AddEncoded(kid, n, e string) error {
	if kid == "" {
		return fmt.Errorf("%w: empty kid", idtoken.ErrInvalidKey)
	}
	key, err := idtoken.ParsePublicKey(n, e)
	if err != nil {
		return fmt.Errorf("key %q: %w", kid, err)
	}
	r.Add(kid, key)
	return nil
}

// LoadJWKS registers every RS256 signing key in a JWKS document and returns
// how many were added. Keys for other algorithms or uses are skipped; an RSA
// key that violates the key invariants fails the whole document.
func (r *Registry) LoadJWKS(data []byte) (int, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(data, &set); err != nil {
		return 0, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	parsed := make(map[string]idtoken.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		if jwk.Algorithm != "" && jwk.Algorithm != string(jose.RS256) {
			continue
		}
		pub, ok := jwk.Key.(*rsa.PublicKey)
		if !ok {
			continue
		}
		if jwk.KeyID == "" {
			return 0, fmt.Errorf("%w: JWKS key without kid", idtoken.ErrInvalidKey)
		}
		key, err := idtoken.FromRSA(pub)
		if err != nil {
			return 0, fmt.Errorf("key %q: %w", jwk.KeyID, err)
		}
		parsed[jwk.KeyID] = key
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for kid, key := range parsed {
		r.keys[kid] = key
	}
	return len(parsed), nil
}

// LoadJWKSFile reads a JWKS document from path
func (r *Registry) LoadJWKSFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read JWKS file: %w", err)
	}
	return r.LoadJWKS(data)
}

// Lookup returns the key registered for kid
func (r *Registry) Lookup(kid string) (idtoken.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[kid]
	if !ok {
		return idtoken.PublicKey{}, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
	}
	return key, nil
}

// Resolve selects the key for a token from its (unauthenticated) header kid
func (r *Registry) Resolve(token string) (string, idtoken.PublicKey, error) {
	header, err := idtoken.ParseHeader(token)
	if err != nil {
		return "", idtoken.PublicKey{}, err
	}
	key, err := r.Lookup(header.Kid)
	if err != nil {
		return header.Kid, idtoken.PublicKey{}, err
	}
	return header.Kid, key, nil
}

// Kids returns the registered key IDs in sorted order
func (r *Registry) Kids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kids := make([]string, 0, len(r.keys))
	for kid := range r.keys {
		kids = append(kids, kid)
	}
	slices.Sort(kids)
	return kids
}

// Len returns the number of registered keys
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
