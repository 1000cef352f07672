// Copyright 2026 Molt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cipher

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeyEnv holds the base64-encoded 32-byte master key.
	KeyEnv = "MOLT_CREDENTIALS_KEY"

	payloadV1 byte = 0x01
)

// minPayload is version byte + nonce + poly1305 tag.
const minPayload = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// Cipher seals and opens credential payloads with XChaCha20-Poly1305.
// Payload layout: [version][nonce][ciphertext].
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a 32-byte key.
func New(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "init aead")
	}
	return &Cipher{aead: aead}, nil
}

// FromEnv builds a Cipher from the base64 key in KeyEnv.
func FromEnv() (*Cipher, error) {
	raw := os.Getenv(KeyEnv)
	if raw == "" {
		return nil, errors.Errorf("%s is not set", KeyEnv)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "%s must be base64-encoded", KeyEnv)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("%s must decode to %d bytes (got %d)", KeyEnv, chacha20poly1305.KeySize, len(key))
	}
	return New(key)
}

// Encrypt seals plaintext, binding it to aad.
func (c *Cipher) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "nonce")
	}
	payload := make([]byte, 0, 1+len(nonce)+len(plaintext)+c.aead.Overhead())
	payload = append(payload, payloadV1)
	payload = append(payload, nonce...)
	return c.aead.Seal(payload, nonce, plaintext, aad), nil
}

// Decrypt opens a sealed payload produced by Encrypt with the same aad.
func (c *Cipher) Decrypt(payload, aad []byte) ([]byte, error) {
	if len(payload) < minPayload {
		return nil, errors.New("encrypted payload is too short")
	}
	if payload[0] != payloadV1 {
		return nil, fmt.Errorf("unsupported cipher version: %d", payload[0])
	}
	nonce := payload[1 : 1+c.aead.NonceSize()]
	ciphertext := payload[1+c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt payload")
	}
	return plaintext, nil
}

// EncryptString seals a string and returns the payload base64-encoded.
func (c *Cipher) EncryptString(plaintext, aad string) (string, error) {
	payload, err := c.Encrypt([]byte(plaintext), []byte(aad))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecryptString opens a base64-encoded payload back into a string.
func (c *Cipher) DecryptString(encoded, aad string) (string, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(err, "decode payload")
	}
	plaintext, err := c.Decrypt(payload, []byte(aad))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
