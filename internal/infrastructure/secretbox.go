package infrastructure

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

var errSealedValueCorrupt = errors.New("sealed value corrupt")

// SecretBox seals stored credentials with NaCl secretbox (XSalsa20-Poly1305).
type SecretBox struct {
	key [32]byte
}

// NewSecretBox takes a 32-byte key encoded as 64 hex characters.
func NewSecretBox(hexKey string) (*SecretBox, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("sealing key is not hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("sealing key must be 32 bytes, got %d", len(raw))
	}
	sb := &SecretBox{}
	copy(sb.key[:], raw)
	return sb, nil
}

func (s *SecretBox) Seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *SecretBox) Open(sealed string) (string, error) {
	if !s.IsSealed(sealed) {
		return "", errSealedValueCorrupt
	}
	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil || len(box) < 24+secretbox.Overhead {
		return "", errSealedValueCorrupt
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", errSealedValueCorrupt
	}
	return string(plain), nil
}

func (s *SecretBox) IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
