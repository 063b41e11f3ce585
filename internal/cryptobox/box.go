// Package cryptobox implements the session encryption established by the
// crypto handshake: an X25519 key agreement whose shared point is run through
// HChaCha20 to key an XChaCha20-Poly1305 AEAD. Both peers derive the same box
// from their own secret key and the other side's public key.
package cryptobox

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

const (
	KeySize   = curve25519.ScalarSize
	NonceSize = chacha20poly1305.NonceSizeX
	// Overhead is the number of bytes Encrypt adds to a plaintext.
	Overhead = NonceSize + chacha20poly1305.Overhead
)

// ErrCiphertextTooShort is returned by Decrypt for inputs that cannot hold a nonce and tag.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Public [KeySize]byte
	Secret [KeySize]byte
}

// GenerateKeyPair creates a fresh key pair from crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	kp := &KeyPair{}
	if _, err := rand.Read(kp.Secret[:]); err != nil {
		return nil, fmt.Errorf("generate secret key: %w", err)
	}
	pub, err := curve25519.X25519(kp.Secret[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// Box encrypts and decrypts payloads for one session. It is safe for
// concurrent use: every call draws its own random nonce.
type Box struct {
	aead cipher.AEAD
}

// NewBox derives the shared box from our secret key and the peer's public key.
// Low-order peer keys are rejected.
func NewBox(peerPublic, secret [KeySize]byte) (*Box, error) {
	shared, err := curve25519.X25519(secret[:], peerPublic[:])
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	key, err := chacha20.HChaCha20(shared, make([]byte, 16))
	if err != nil {
		return nil, fmt.Errorf("derive box key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext and returns nonce ‖ ciphertext.
func (b *Box) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, NonceSize, Overhead+len(plaintext))
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return b.aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// Decrypt opens nonce ‖ ciphertext produced by the peer's Encrypt.
func (b *Box) Decrypt(data []byte) ([]byte, error) {
	if len(data) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextTooShort, len(data))
	}
	plain, err := b.aead.Open(nil, data[:NonceSize], data[NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("open box: %w", err)
	}
	return plain, nil
}
