package connections

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const cryptoFormatVersion = "v1"

// Keychain seals provider tokens at rest. The first key encrypts; every key
// is tried on decrypt so secrets can be rotated without re-sealing stored
// rows immediately.
type Keychain struct {
	keys []keychainKey
}

type keychainKey struct {
	id     string
	cipher []byte
}

// NewKeychain derives 256-bit keys from the primary secret and any previous
// secrets still in rotation.
func NewKeychain(primary string, previous ...string) (*Keychain, error) {
	primary = strings.TrimSpace(primary)
	if primary == "" {
		return nil, fmt.Errorf("connections: token encryption key is required")
	}

	sources := []string{primary}
	for _, source := range previous {
		source = strings.TrimSpace(source)
		if source != "" && !slices.Contains(sources, source) {
			sources = append(sources, source)
		}
	}

	kc := &Keychain{}
	for i, source := range sources {
		digest := sha256.Sum256([]byte(source))
		kc.keys = append(kc.keys, keychainKey{
			id:     fmt.Sprintf("k%d", i),
			cipher: digest[:],
		})
	}
	return kc, nil
}

// Seal encrypts value with the primary key. The payload format is
// "v1.<keyId>.<base64url(nonce || ciphertext)>".
func (kc *Keychain) Seal(value string) (string, error) {
	key := kc.keys[0]
	aead, err := chacha20poly1305.New(key.cipher)
	if err != nil {
		return "", fmt.Errorf("connections: build cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("connections: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(value), nil)
	encoded := base64.RawURLEncoding.EncodeToString(sealed)
	return strings.Join([]string{cryptoFormatVersion, key.id, encoded}, "."), nil
}

// Open decrypts a sealed payload, preferring the key named in the payload and
// falling back to the rest of the chain.
func (kc *Keychain) Open(payload string) (string, error) {
	segments := strings.SplitN(payload, ".", 3)
	if len(segments) != 3 || segments[0] != cryptoFormatVersion || segments[1] == "" || segments[2] == "" {
		return "", fmt.Errorf("connections: sealed payload is malformed")
	}

	data, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		return "", fmt.Errorf("connections: decode sealed payload: %w", err)
	}

	for _, key := range kc.orderedFor(segments[1]) {
		if plain, err := openWithKey(key.cipher, data); err == nil {
			return plain, nil
		}
	}
	return "", fmt.Errorf("connections: no configured key opens the payload")
}

// orderedFor puts the named key first so rotation rarely costs extra tries.
func (kc *Keychain) orderedFor(keyID string) []keychainKey {
	ordered := make([]keychainKey, 0, len(kc.keys))
	for _, key := range kc.keys {
		if key.id == keyID {
			ordered = append(ordered, key)
		}
	}
	for _, key := range kc.keys {
		if key.id != keyID {
			ordered = append(ordered, key)
		}
	}
	return ordered
}

func openWithKey(cipherKey, data []byte) (string, error) {
	aead, err := chacha20poly1305.New(cipherKey)
	if err != nil {
		return "", err
	}
	if len(data) < aead.NonceSize() {
		return "", fmt.Errorf("payload too short")
	}
	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
