package primitives

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// GCMEncrypt seals plaintext under key/iv/aad, returning ciphertext with
// the authentication tag appended, matching the wire layout used
// throughout the envelope (ciphertext || tag).
func GCMEncrypt(key, iv, aad, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "GCM nonce has the wrong length")
	}
	return gcm.Seal(nil, iv, plaintext, aad), nil
}

// GCMDecrypt opens ciphertext||tag under key/iv/aad. Any authentication
// failure is surfaced as CryptoError, never as a bare Go error.
func GCMDecrypt(key, iv, aad, ciphertextAndTag []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "GCM nonce has the wrong length")
	}
	pt, err := gcm.Open(nil, iv, ciphertextAndTag, aad)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "failed to decrypt: authentication tag mismatch", err)
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "failed to create AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "failed to create GCM mode", err)
	}
	return gcm, nil
}
