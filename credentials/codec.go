package credentials

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

// Codec turns a plaintext secret into its stored form and back.
// provider is bound into the encoding so values cannot be swapped between providers.
type Codec interface {
	Encode(provider, plain string) (string, error)
	Decode(provider, stored string) (string, error)
}

// Base64Codec is the legacy reversible obfuscation. It is not encryption and
// is only used when no encryption key is configured.
type Base64Codec struct{}

func (Base64Codec) Encode(_ string, plain string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(plain)), nil
}

func (Base64Codec) Decode(_ string, stored string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decode legacy secret: %w", err)
	}
	return string(b), nil
}

const aesPrefix = "v1:"

// AESCodec seals secrets with AES-GCM. Values written by Base64Codec are still
// readable so existing rows keep working until they are saved again.
type AESCodec struct {
	primary cipher.AEAD
	// previous keys are tried on decode after a key rotation.
	previous []cipher.AEAD
}

func NewAESCodec(key string, previous ...string) (*AESCodec, error) {
	primary, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("credentials key: %w", err)
	}
	c := &AESCodec{primary: primary}
	for _, k := range previous {
		if strings.TrimSpace(k) == "" || k == key {
			continue
		}
		gcm, err := newGCM(k)
		if err != nil {
			return nil, fmt.Errorf("previous credentials key: %w", err)
		}
		c.previous = append(c.previous, gcm)
	}
	return c, nil
}

func (c *AESCodec) Encode(provider, plain string) (string, error) {
	nonce := make([]byte, c.primary.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.primary.Seal(nonce, nonce, []byte(plain), additionalData(provider))
	return aesPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *AESCodec) Decode(provider, stored string) (string, error) {
	if !strings.HasPrefix(stored, aesPrefix) {
		return Base64Codec{}.Decode(provider, stored)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, aesPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed secret: %w", err)
	}
	for _, gcm := range append([]cipher.AEAD{c.primary}, c.previous...) {
		n := gcm.NonceSize()
		if len(raw) < n {
			continue
		}
		pt, err := gcm.Open(nil, raw[:n], raw[n:], additionalData(provider))
		if err == nil {
			return string(pt), nil
		}
	}
	return "", errors.New("sealed secret does not open with any configured key")
}

func additionalData(provider string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(provider)))
}

// parseKey accepts a base64 key and falls back to the raw bytes. Either form
// must be exactly 16, 24 or 32 bytes; other lengths are rejected rather than
// cut down to a weaker key.
func parseKey(k string) ([]byte, error) {
	k = strings.TrimSpace(k)
	if k == "" {
		return nil, errors.New("key is empty")
	}
	if decoded, err := base64.StdEncoding.DecodeString(k); err == nil && validKeySize(len(decoded)) {
		return decoded, nil
	}
	if validKeySize(len(k)) {
		return []byte(k), nil
	}
	return nil, fmt.Errorf("key must be 16, 24 or 32 bytes, raw or base64 encoded, got %d characters", len(k))
}

func validKeySize(n int) bool {
	return n == 16 || n == 24 || n == 32
}

func newGCM(key string) (cipher.AEAD, error) {
	keyBytes, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
