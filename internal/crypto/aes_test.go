package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)
	for _, plain := range []string{"x", "sk-test-1234567890", "ключ", strings.Repeat("a", 4096)} {
		enc, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plain, err)
		}
		if enc == plain || !IsEncrypted(enc) {
			t.Fatalf("Encrypt(%q) = %q, expected prefixed ciphertext", plain, enc)
		}
		dec, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if dec != plain {
			t.Errorf("round trip = %q, want %q", dec, plain)
		}
	}
}

func TestCipher_EmptyString(t *testing.T) {
	c := newTestCipher(t)
	enc, err := c.Encrypt("")
	if err != nil || enc != "" {
		t.Errorf(`Encrypt("") = %q, %v; want "", nil`, enc, err)
	}
	dec, err := c.Decrypt("")
	if err != nil || dec != "" {
		t.Errorf(`Decrypt("") = %q, %v; want "", nil`, dec, err)
	}
}

func TestCipher_DecryptFailures(t *testing.T) {
	c := newTestCipher(t)
	other, err := NewCipher(strings.Repeat("k", 32))
	if err != nil {
		t.Fatal(err)
	}
	foreign, _ := other.Encrypt("secret")

	tests := []struct {
		name  string
		input string
	}{
		{"plaintext", "sk-plain"},
		{"bad_base64", prefix + "!!!"},
		{"too_short", prefix + base64.StdEncoding.EncodeToString([]byte("abc"))},
		{"wrong_key", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Decrypt(tt.input); !errors.Is(err, ErrDecrypt) {
				t.Errorf("Decrypt(%q) err = %v, want ErrDecrypt", tt.input, err)
			}
		})
	}
}

func TestDeriveKey(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("z", 32)))
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"hex", testKey, false},
		{"base64", b64, false},
		{"raw", strings.Repeat("r", 32), false},
		{"short", "short", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := DeriveKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeriveKey error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(k) != 32 {
				t.Errorf("len = %d, want 32", len(k))
			}
		})
	}
}

func TestGenerateKey(t *testing.T) {
	k, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewCipher(k); err != nil {
		t.Errorf("generated key rejected: %v", err)
	}
}
