// Package credential loads the Provider API key into locked, non-swappable
// memory and hands out short-lived copies only for the duration of a single
// transport call — grounded on openai_llm.go's env-var-first,
// secret-file-fallback pattern, hardened with memguard so the key never
// lingers in a Go-managed, GC-movable byte slice.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// ErrNoCredential is returned when neither an environment variable nor a
// secret file supplies an API key.
var ErrNoCredential = errors.New("credential: no provider api key configured")

// Provider hands out the Provider API key under lock.
type Provider struct {
	enclave *memguard.Enclave
}

// Load resolves the API key from envVar first, then from secretFile (a
// plain-text file containing only the key, trimmed of surrounding
// whitespace) — mirroring the original client's fallback order.
func Load(envVar, secretFile string) (*Provider, error) {
	if v := os.Getenv(envVar); v != "" {
		buf := memguard.NewBufferFromBytes([]byte(v))
		return &Provider{enclave: buf.Seal()}, nil
	}
	if secretFile != "" {
		raw, err := os.ReadFile(secretFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNoCredential
			}
			return nil, fmt.Errorf("credential: read secret file: %w", err)
		}
		key := strings.TrimSpace(string(raw))
		if key == "" {
			return nil, ErrNoCredential
		}
		buf := memguard.NewBufferFromBytes([]byte(key))
		return &Provider{enclave: buf.Seal()}, nil
	}
	return nil, ErrNoCredential
}

// WithKey decrypts the enclave, invokes fn with the plaintext key, then wipes
// the decrypted buffer before returning — the key never escapes fn's scope.
func (p *Provider) WithKey(fn func(key string) error) error {
	buf, err := p.enclave.Open()
	if err != nil {
		return fmt.Errorf("credential: unseal: %w", err)
	}
	defer buf.Destroy()
	return fn(string(buf.Bytes()))
}

// Destroy purges the enclave's underlying memory; call during shutdown.
func (p *Provider) Destroy() {
	memguard.Purge()
}
