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
	"bytes"
	"encoding/base64"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	plaintext := []byte(`{"token":"s3cr3t","user":"svc"}`)
	aad := []byte("backend/http-default")

	payload, err := c.Encrypt(plaintext, aad)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if bytes.Contains(payload, plaintext) {
		t.Fatal("payload must not contain plaintext")
	}

	got, err := c.Decrypt(payload, aad)
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestDecryptRejectsWrongAAD(t *testing.T) {
	c, _ := New(testKey())
	payload, err := c.Encrypt([]byte("secret"), []byte("backend/a"))
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if _, err := c.Decrypt(payload, []byte("backend/b")); err == nil {
		t.Fatal("Decrypt() should fail when aad does not match")
	}
}

func TestDecryptRejectsTamperedPayload(t *testing.T) {
	c, _ := New(testKey())
	payload, err := c.Encrypt([]byte("secret"), nil)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	payload[len(payload)-1] ^= 0xff
	if _, err := c.Decrypt(payload, nil); err == nil {
		t.Fatal("Decrypt() should fail on a tampered payload")
	}
}

func TestDecryptRejectsShortPayload(t *testing.T) {
	c, _ := New(testKey())
	if _, err := c.Decrypt([]byte{payloadV1, 0x01}, nil); err == nil {
		t.Fatal("Decrypt() should fail on a truncated payload")
	}
}

func TestDecryptRejectsUnknownVersion(t *testing.T) {
	c, _ := New(testKey())
	payload, err := c.Encrypt([]byte("secret"), nil)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	payload[0] = 0x7f
	if _, err := c.Decrypt(payload, nil); err == nil {
		t.Fatal("Decrypt() should fail on an unknown version byte")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(KeyEnv, base64.StdEncoding.EncodeToString(testKey()))
	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() failed: %v", err)
	}

	encoded, err := c.EncryptString("hunter2", "cred")
	if err != nil {
		t.Fatalf("EncryptString() failed: %v", err)
	}
	got, err := c.DecryptString(encoded, "cred")
	if err != nil {
		t.Fatalf("DecryptString() failed: %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("DecryptString() = %q, want %q", got, "hunter2")
	}

	t.Setenv(KeyEnv, "not-base64!!!")
	if _, err := FromEnv(); err == nil {
		t.Fatal("FromEnv() should fail on invalid base64 key")
	}

	t.Setenv(KeyEnv, base64.StdEncoding.EncodeToString([]byte("short")))
	if _, err := FromEnv(); err == nil {
		t.Fatal("FromEnv() should fail on a short key")
	}
}
