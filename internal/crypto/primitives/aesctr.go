package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// CTRFromGCMNonce builds the AES-CTR keystream used to decrypt a byte
// range of a GCM-encrypted object without re-deriving the GCM tag.
//
// GCM's pre-counter block is J0 = nonce || 0x00000001; the first block of
// keystream actually used for content (as opposed to tag generation) is
// inc32(J0), i.e. the low 32 bits incremented once more to 0x00000002.
// Decrypting starting at byteOffset additionally advances the counter by
// byteOffset/16 blocks. byteOffset must be a multiple of 16 and nonce must
// be the standard 12-byte GCM nonce; both are caller errors otherwise.
func CTRFromGCMNonce(key, nonce []byte, byteOffset int64) (cipher.Stream, error) {
	if len(nonce) != 12 {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "GCM nonce must be 12 bytes for ranged CTR decryption")
	}
	if byteOffset < 0 || byteOffset%16 != 0 {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "ranged read offset must be a multiple of 16")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "failed to create AES cipher", err)
	}

	blockDelta := uint32(byteOffset / 16)
	counter := make([]byte, 16)
	copy(counter, nonce)
	binary.BigEndian.PutUint32(counter[12:], 2+blockDelta)

	return cipher.NewCTR(block, counter), nil
}
