package primitives

import (
	"crypto/aes"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// AESECBDecryptPKCS7 decrypts legacy AES-ECB-wrapped key material. ECB mode
// has no IV: each block is decrypted independently. It exists only to read
// V1-era key-wrap blobs that predate GCM key-wrap; nothing in this module
// ever wraps under ECB.
func AESECBDecryptPKCS7(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "failed to create AES cipher", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, cryptoerr.New(cryptoerr.InvalidData, "ECB ciphertext is not a multiple of the block size")
	}
	out := make([]byte, len(ciphertext))
	for off := 0; off < len(ciphertext); off += aes.BlockSize {
		block.Decrypt(out[off:off+aes.BlockSize], ciphertext[off:off+aes.BlockSize])
	}
	n := len(out)
	pad := int(out[n-1])
	if pad == 0 || pad > aes.BlockSize || pad > n {
		return nil, cryptoerr.New(cryptoerr.InvalidData, "invalid ECB PKCS7 padding")
	}
	for _, b := range out[n-pad:] {
		if int(b) != pad {
			return nil, cryptoerr.New(cryptoerr.InvalidData, "invalid ECB PKCS7 padding")
		}
	}
	return out[:n-pad], nil
}
