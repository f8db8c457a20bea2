// Package cryptoutil seals stored session values with AES-256-GCM.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix versions the format so the algorithm can rotate later.
const sealedPrefix = "sealed:v1:"

var (
	// ErrNotSealed is returned by Open for values without the sealed prefix.
	ErrNotSealed = errors.New("value is not sealed")
	// ErrTampered is returned when authentication fails, including a value moved to another key.
	ErrTampered = errors.New("sealed value failed authentication")
)

// Sealer encrypts values bound to a label. The label is authenticated but not
// stored, so a sealed value only opens under the label it was sealed with.
type Sealer interface {
	Seal(label string, plaintext []byte) (string, error)
	Open(label, sealed string) ([]byte, error)
}

// AESGCMSealer implements Sealer using AES-256-GCM.
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer constructs a sealer. Key must be 32 bytes.
func NewAESGCMSealer(key []byte) (*AESGCMSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMSealer{aead: aead}, nil
}

// ParseKey decodes a base64 (standard or URL alphabet) 32-byte key.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil {
			if len(key) != 32 {
				return nil, fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(key))
			}
			return key, nil
		}
	}
	return nil, errors.New("encryption key is not valid base64")
}

// Seal encrypts plaintext with a random nonce: prefix + base64(nonce||ciphertext).
func (s *AESGCMSealer) Seal(label string, plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, plaintext, []byte(label))
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal for the same label.
func (s *AESGCMSealer) Open(label, sealed string) ([]byte, error) {
	b64, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return nil, ErrNotSealed
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	n := s.aead.NonceSize()
	if len(data) < n+s.aead.Overhead() {
		return nil, ErrTampered
	}
	pt, err := s.aead.Open(nil, data[:n], data[n:], []byte(label))
	if err != nil {
		return nil, ErrTampered
	}
	return pt, nil
}

// IsSealed reports whether v carries the sealed prefix.
func IsSealed(v string) bool { return strings.HasPrefix(v, sealedPrefix) }
