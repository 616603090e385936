package envelope

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/oasisprotocol/deoxysii"
	"golang.org/x/crypto/curve25519"

	"private-lending/internal/errs"
)

// boxKDFKey is the HMAC key of the X25519-DeoxysII box used by confidential EVM clients.
var boxKDFKey = []byte("MRAE_Box_Deoxys-II-256-128")

// KeyPair is an X25519 key pair. The lending core publishes PublicKey; clients encrypt to it.
type KeyPair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

// GenerateKeyPair creates a random X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	return generateKeyPair(rand.Reader)
}

func generateKeyPair(r io.Reader) (*KeyPair, error) {
	var priv [32]byte
	if _, err := io.ReadFull(r, priv[:]); err != nil {
		return nil, fmt.Errorf("failed to read key material: %w", err)
	}
	return keyPairFromPrivate(priv)
}

// KeyPairFromHex restores a key pair from a hex-encoded 32-byte private key.
func KeyPairFromHex(privateKeyHex string) (*KeyPair, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key hex: %v", errs.ErrConfig, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes, got %d", errs.ErrConfig, len(raw))
	}
	var priv [32]byte
	copy(priv[:], raw)
	return keyPairFromPrivate(priv)
}

func keyPairFromPrivate(priv [32]byte) (*KeyPair, error) {
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	kp := &KeyPair{PrivateKey: priv}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// PublicKeyHex returns the 0x-prefixed public key.
func (k *KeyPair) PublicKeyHex() string {
	return "0x" + hex.EncodeToString(k.PublicKey[:])
}

func deriveKey(privateKey, publicKey []byte) ([]byte, error) {
	shared, err := curve25519.X25519(privateKey, publicKey)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha512.New512_256, boxKDFKey)
	mac.Write(shared)
	return mac.Sum(nil), nil
}

// Encode encrypts plaintext to recipientPublicKey using a fresh ephemeral key pair.
func Encode(plaintext, recipientPublicKey []byte) (*Envelope, error) {
	return encode(rand.Reader, plaintext, recipientPublicKey)
}

func encode(r io.Reader, plaintext, recipientPublicKey []byte) (*Envelope, error) {
	if len(recipientPublicKey) != PublicKeySize {
		return nil, fmt.Errorf("%w: recipient public key must be %d bytes, got %d", errs.ErrFraming, PublicKeySize, len(recipientPublicKey))
	}

	ephemeral, err := generateKeyPair(r)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(ephemeral.PrivateKey[:], recipientPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: key agreement failed: %v", errs.ErrFraming, err)
	}
	aead, err := deoxysii.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init AEAD: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return NewEnvelope(ephemeral.PublicKey[:], nonce, ciphertext)
}

// Decode reverses Encode with the recipient's private key.
func Decode(env *Envelope, recipientPrivateKey []byte) ([]byte, error) {
	if env == nil || len(env.Ciphertext) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", errs.ErrDecryption)
	}
	if len(recipientPrivateKey) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes", errs.ErrDecryption)
	}

	key, err := deriveKey(recipientPrivateKey, env.SenderPublicKey[:])
	if err != nil {
		return nil, fmt.Errorf("%w: key agreement failed: %v", errs.ErrDecryption, err)
	}
	aead, err := deoxysii.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecryption, err)
	}

	plaintext, err := aead.Open(nil, env.AEADNonce(), env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecryption, err)
	}
	return plaintext, nil
}
