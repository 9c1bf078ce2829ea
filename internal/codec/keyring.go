package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// Keyring keeps the session's symmetric key sealed in a memguard enclave.
// The plaintext key only exists in locked memory while an operation runs.
type Keyring struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
	size    int
}

// ParseKey turns a configured key into bytes. A "base64:" prefix selects
// base64 decoding; anything else is taken as raw UTF-8.
func ParseKey(s string) ([]byte, error) {
	if encoded, ok := strings.CutPrefix(s, "base64:"); ok {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("codec: decode key: %w", err)
		}
		return key, nil
	}
	return []byte(s), nil
}

// NewKeyring validates key and seals a copy of it. The caller's slice is
// left untouched.
func NewKeyring(key []byte) (*Keyring, error) {
	if !ValidKeyLength(len(key)) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}
	buf := make([]byte, len(key))
	copy(buf, key)
	// NewEnclave wipes buf once sealed.
	return &Keyring{enclave: memguard.NewEnclave(buf), size: len(key)}, nil
}

// Size returns the key length in bytes.
func (k *Keyring) Size() int {
	return k.size
}

// Use opens the key for the duration of fn.
func (k *Keyring) Use(fn func(key []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.enclave == nil {
		return ErrEncryptionDisabled
	}
	lb, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("codec: open key enclave: %w", err)
	}
	defer lb.Destroy()
	return fn(lb.Bytes())
}

// Destroy drops the sealed key. Later calls to Use fail.
func (k *Keyring) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enclave = nil
}
