package primitives

import (
	"bytes"
	"crypto/rand"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// RandomBytes returns n cryptographically-secure random bytes. An all-zero
// result is treated as evidence of a broken RNG and rejected: IVs and
// message-ids must never be predictable.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "failed to read random bytes", err)
	}
	if allZero(b) {
		return nil, cryptoerr.New(cryptoerr.InvalidData, "random source returned an all-zero buffer")
	}
	return b, nil
}

func allZero(b []byte) bool {
	return bytes.Equal(b, make([]byte, len(b)))
}
