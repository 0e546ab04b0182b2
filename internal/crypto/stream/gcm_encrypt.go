// Package stream provides the encrypting/decrypting io.Reader wrappers
// used by the put/get pipeline: a forward-only GCM encrypt stream, a
// caching variant that tolerates transport-level retries, a GCM decrypt
// stream, a CTR decrypt stream for ranged reads, and a legacy CBC decrypt
// stream.
//
// AES-GCM has no incremental authentication primitive in the standard
// library -- the tag can only be produced once the entire message is
// known. Every GCM stream here therefore reads its underlying source to
// completion on first Read and seals/opens in one shot, then serves the
// result from a buffer; this matches how the wider ecosystem builds
// "streaming" GCM (see guided-traffic's AESGCMDataEncryptor) and keeps the
// "tag verified before any byte is trusted" contract trivially true.
package stream

import (
	"bytes"
	"io"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
)

// GCMEncryptStream wraps a plaintext source and emits ciphertext with the
// 16-byte authentication tag appended exactly once, at end of stream.
type GCMEncryptStream struct {
	key, iv, aad []byte
	src          io.Reader

	out     *bytes.Reader
	sealed  bool
	sealErr error
}

// NewGCMEncryptStream builds a GCMEncryptStream. key/iv/aad are used
// as-is; key must be 32 bytes and iv must match the suite's IV length.
func NewGCMEncryptStream(src io.Reader, key, iv, aad []byte) *GCMEncryptStream {
	return &GCMEncryptStream{key: key, iv: iv, aad: aad, src: src}
}

func (s *GCMEncryptStream) seal() {
	if s.sealed {
		return
	}
	s.sealed = true
	plaintext, err := io.ReadAll(s.src)
	if err != nil {
		s.sealErr = cryptoerr.Wrap(cryptoerr.CryptoError, "failed to read plaintext source", err)
		return
	}
	ct, err := primitives.GCMEncrypt(s.key, s.iv, s.aad, plaintext)
	if err != nil {
		s.sealErr = err
		return
	}
	s.out = bytes.NewReader(ct)
}

// Read implements io.Reader. Both blocking and non-blocking callers see
// byte-identical output: this type has no concept of partial progress
// before the seal completes, which is the synchronous case; an async
// caller is expected to run Read from a goroutine, which yields the same
// bytes since sealing is deterministic given the same source bytes.
func (s *GCMEncryptStream) Read(p []byte) (int, error) {
	s.seal()
	if s.sealErr != nil {
		return 0, s.sealErr
	}
	return s.out.Read(p)
}
