package cipher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// #region cipher

// Cipher encrypts safety-net snapshot payloads at rest with a SHA-256
// counter-mode keystream. The key lives next to the engine database and is
// created on first use.
type Cipher struct {
	key []byte
}

// Load reads the key file, generating a fresh 32-byte key when absent.
func Load(keyPath string) (*Cipher, error) {
	data, err := os.ReadFile(keyPath)
	if err == nil && len(data) >= 32 {
		return &Cipher{key: data[:32]}, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("keygen: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0o755); err != nil {
		return nil, fmt.Errorf("key dir: %w", err)
	}
	if err := os.WriteFile(keyPath, key, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// #endregion cipher

// #region keystream

func keystream(key []byte, length int) []byte {
	stream := make([]byte, 0, length+32)
	counter := uint64(0)
	for len(stream) < length {
		buf := make([]byte, len(key)+8)
		copy(buf, key)
		binary.BigEndian.PutUint64(buf[len(key):], counter)
		h := sha256.Sum256(buf)
		stream = append(stream, h[:]...)
		counter++
	}
	return stream[:length]
}

// #endregion keystream

// #region encrypt-decrypt

// Encrypt XORs the payload with the keystream. Symmetric with Decrypt.
func (c *Cipher) Encrypt(plaintext []byte) []byte {
	ks := keystream(c.key, len(plaintext))
	out := make([]byte, len(plaintext))
	for i := range plaintext {
		out[i] = plaintext[i] ^ ks[i]
	}
	return out
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext []byte) []byte {
	return c.Encrypt(ciphertext)
}

// #endregion encrypt-decrypt
