package cipher

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), ".snapshot_key"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	plain := []byte("pre-action content: do not lose a byte \x00\x01\xff")
	enc := c.Encrypt(plain)
	if bytes.Equal(enc, plain) {
		t.Fatal("ciphertext equals plaintext")
	}
	if got := c.Decrypt(enc); !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestKeyPersistsAcrossLoads(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), ".snapshot_key")

	c1, err := Load(keyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	enc := c1.Encrypt([]byte("stable"))

	c2, err := Load(keyPath)
	if err != nil {
		t.Fatalf("Load again: %v", err)
	}
	if got := c2.Decrypt(enc); string(got) != "stable" {
		t.Fatalf("second load decrypts to %q", got)
	}
}

func TestEmptyPayload(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), ".snapshot_key"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Decrypt(c.Encrypt(nil)); len(got) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got))
	}
}
