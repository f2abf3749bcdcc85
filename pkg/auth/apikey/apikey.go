// Package apikey provides an API key authenticator that validates keys
// against a static list using SHA-256 hashing and constant-time
// comparison. Keys are accepted as a bearer token or in the X-API-Key
// header.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/rhuss/chatkit/pkg/auth"
)

// HeaderName is the alternative header carrying an API key.
const HeaderName = "X-API-Key"

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key     string `yaml:"key"`
	Subject string `yaml:"subject"`
	Tenant  string `yaml:"tenant"`
	Tier    string `yaml:"tier"`
}

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []keyEntry
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New creates an authenticator from raw keys. Keys are hashed
// immediately; plaintext keys are not retained. Entries without a key
// are ignored and entries without a subject use the key's hash prefix.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		hash := sha256.Sum256([]byte(e.Key))
		subject := e.Subject
		if subject == "" {
			subject = "key-" + hex.EncodeToString(hash[:4])
		}
		a.keys = append(a.keys, keyEntry{
			hash:     hash,
			identity: auth.Identity{Subject: subject, Tenant: e.Tenant, Tier: e.Tier},
		})
	}
	return a
}

// Authenticate returns Yes for a known key, No for an unknown one and
// Abstain when the request carries no key.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	key := r.Header.Get(HeaderName)
	if key == "" {
		token, ok := auth.BearerToken(r)
		if !ok {
			return auth.AuthResult{Decision: auth.Abstain}
		}
		key = token
	}
	if key == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	hash := sha256.Sum256([]byte(key))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(hash[:], entry.hash[:]) == 1 {
			id := entry.identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

// Len returns the number of configured keys.
func (a *Authenticator) Len() int { return len(a.keys) }
