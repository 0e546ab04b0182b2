package stream

import (
	"crypto/cipher"
	"io"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
)

// CTRRangeDecryptStream decrypts a byte range of a GCM-encrypted object
// using the GCM-nonce-to-CTR translation, for ranged reads where
// re-deriving the full GCM tag is neither necessary nor possible (the
// requested range may not include the tag at all). Seeking is not
// supported: construct a new stream per range request.
type CTRRangeDecryptStream struct {
	ctr    cipher.Stream
	src    io.Reader
	remain int64 // plaintext bytes still to serve before stopping short of the tag
}

// NewCTRRangeDecryptStream builds a ranged decrypt stream. src must yield
// exactly the ciphertext bytes in [rangeStart, rangeEnd] (inclusive) of
// the stored object. totalCiphertextLen is the full object size including
// the trailing tagSize-byte GCM tag.
func NewCTRRangeDecryptStream(src io.Reader, key, nonce []byte, tagSize int, rangeStart, rangeEnd, totalCiphertextLen int64) (*CTRRangeDecryptStream, error) {
	if rangeStart < 0 || rangeEnd < rangeStart {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "invalid byte range")
	}
	ctr, err := primitives.CTRFromGCMNonce(key, nonce, rangeStart)
	if err != nil {
		return nil, err
	}

	tagRegionStart := totalCiphertextLen - int64(tagSize)
	requestedEnd := rangeEnd
	if requestedEnd >= tagRegionStart {
		requestedEnd = tagRegionStart - 1
	}
	remain := requestedEnd - rangeStart + 1
	if remain < 0 {
		remain = 0
	}

	return &CTRRangeDecryptStream{ctr: ctr, src: src, remain: remain}, nil
}

// Read implements io.Reader, stopping before any byte of the trailing tag
// region even if the underlying source has more bytes available.
func (s *CTRRangeDecryptStream) Read(p []byte) (int, error) {
	if s.remain <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > s.remain {
		p = p[:s.remain]
	}
	n, err := s.src.Read(p)
	if n > 0 {
		s.ctr.XORKeyStream(p[:n], p[:n])
		s.remain -= int64(n)
	}
	if err != nil {
		return n, err
	}
	return n, nil
}
