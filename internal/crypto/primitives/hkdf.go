package primitives

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// HKDFSHA512 runs the extract-and-expand HKDF construction over ikm with
// the given salt and info, producing length bytes of output. This is the
// sole KDF the V3 committing suite uses, for both the content-key and
// key-commitment derivations (distinguished only by the info label).
func HKDFSHA512(ikm, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha512.New, ikm, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "HKDF-SHA512 derivation failed", err)
	}
	return out, nil
}
