package sqlite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// secretCipher seals credential material with AES-256-GCM. A nil key
// disables sealing: empty values still pass through so inventory without
// secrets can be stored, but anything non-empty fails with
// driven.ErrEncryptionKeyNotSet.
type secretCipher struct {
	key []byte
}

func newSecretCipher(key []byte) secretCipher {
	return secretCipher{key: key}
}

func (c secretCipher) enabled() bool {
	return c.key != nil
}

func (c secretCipher) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

// seal returns base64(nonce || ciphertext || tag). Empty input stays empty.
func (c secretCipher) seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if !c.enabled() {
		return "", driven.ErrEncryptionKeyNotSet
	}

	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c secretCipher) open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	if !c.enabled() {
		return "", driven.ErrEncryptionKeyNotSet
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func (c secretCipher) sealSecret(s model.Secret) (password, privateKey string, err error) {
	if password, err = c.seal(s.Password); err != nil {
		return "", "", fmt.Errorf("seal password: %w", err)
	}
	if privateKey, err = c.seal(s.PrivateKey); err != nil {
		return "", "", fmt.Errorf("seal private key: %w", err)
	}
	return password, privateKey, nil
}

func (c secretCipher) openSecret(password, privateKey string) (model.Secret, error) {
	var s model.Secret
	var err error
	if s.Password, err = c.open(password); err != nil {
		return model.Secret{}, fmt.Errorf("open password: %w", err)
	}
	if s.PrivateKey, err = c.open(privateKey); err != nil {
		return model.Secret{}, fmt.Errorf("open private key: %w", err)
	}
	return s, nil
}
