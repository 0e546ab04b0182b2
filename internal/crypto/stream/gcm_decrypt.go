package stream

import (
	"bytes"
	"io"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
)

// GCMDecryptStream reads a ciphertext+tag source and authenticates it in
// full before serving any plaintext: the first Read consumes the whole
// source and checks the tag, so no byte is returned unless it passed.
type GCMDecryptStream struct {
	key, iv, aad []byte
	src          io.Reader

	out     *bytes.Reader
	opened  bool
	openErr error
}

// NewGCMDecryptStream builds a GCMDecryptStream.
func NewGCMDecryptStream(src io.Reader, key, iv, aad []byte) *GCMDecryptStream {
	return &GCMDecryptStream{key: key, iv: iv, aad: aad, src: src}
}

func (s *GCMDecryptStream) open() {
	if s.opened {
		return
	}
	s.opened = true
	ciphertext, err := io.ReadAll(s.src)
	if err != nil {
		s.openErr = cryptoerr.Wrap(cryptoerr.CryptoError, "failed to read ciphertext source", err)
		return
	}
	pt, err := primitives.GCMDecrypt(s.key, s.iv, s.aad, ciphertext)
	if err != nil {
		s.openErr = err
		return
	}
	s.out = bytes.NewReader(pt)
}

// Read implements io.Reader.
func (s *GCMDecryptStream) Read(p []byte) (int, error) {
	s.open()
	if s.openErr != nil {
		return 0, s.openErr
	}
	return s.out.Read(p)
}
