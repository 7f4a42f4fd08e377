package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

var (
	ErrInvalidKey      = errors.New("vault: invalid encryption key")
	ErrInvalidPayload  = errors.New("vault: invalid encrypted payload")
	ErrDecryption      = errors.New("vault: decryption failed")
	ErrUnknownProvider = errors.New("vault: unknown provider")
)

// Provider encrypts router API credentials at rest.
type Provider interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

type Config struct {
	Provider string // "aes" or "secretbox"
	Key      string
}

func NewFactory(cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, ErrInvalidKey
	}
	// Any string works as a key; it is stretched to 32 bytes.
	key := sha256.Sum256([]byte(cfg.Key))

	switch strings.ToLower(cfg.Provider) {
	case "aes", "":
		return &AESVault{key: key[:]}, nil
	case "secretbox":
		return &SecretBoxVault{key: key}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

type EncryptedData struct {
	Version    int    `json:"v"`
	Alg        string `json:"a,omitempty"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

func encode(alg string, nonce, ciphertext []byte) ([]byte, error) {
	return json.Marshal(EncryptedData{
		Version:    1,
		Alg:        alg,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	})
}

func decode(alg string, data []byte) (nonce, ciphertext []byte, err error) {
	var payload EncryptedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, ErrInvalidPayload
	}
	if payload.Version != 1 || (payload.Alg != "" && payload.Alg != alg) {
		return nil, nil, ErrInvalidPayload
	}
	nonce, err = base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, nil, ErrInvalidPayload
	}
	ciphertext, err = base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, nil, ErrInvalidPayload
	}
	return nonce, ciphertext, nil
}

// AESVault implements Provider using AES-256-GCM.
type AESVault struct {
	key []byte
}

func (v *AESVault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (v *AESVault) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return encode("aes", nonce, gcm.Seal(nil, nonce, plaintext, nil))
}

func (v *AESVault) Decrypt(data []byte) ([]byte, error) {
	nonce, ciphertext, err := decode("aes", data)
	if err != nil {
		return nil, err
	}
	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrInvalidPayload
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// SecretBoxVault implements Provider using NaCl secretbox (XSalsa20-Poly1305).
type SecretBoxVault struct {
	key [32]byte
}

func (v *SecretBoxVault) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return encode("secretbox", nonce[:], secretbox.Seal(nil, plaintext, &nonce, &v.key))
}

func (v *SecretBoxVault) Decrypt(data []byte) ([]byte, error) {
	rawNonce, ciphertext, err := decode("secretbox", data)
	if err != nil {
		return nil, err
	}
	if len(rawNonce) != 24 {
		return nil, ErrInvalidPayload
	}
	var nonce [24]byte
	copy(nonce[:], rawNonce)
	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &v.key)
	if !ok {
		return nil, ErrDecryption
	}
	return plaintext, nil
}
