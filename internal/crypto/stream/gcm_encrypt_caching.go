package stream

import (
	"bytes"
	"io"
	"sync"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
)

// CachingGCMEncryptStream behaves as GCMEncryptStream but additionally
// retains every ciphertext byte emitted since an anchor position, so a
// caller whose transport retried a partial request can seek backwards
// and re-read without re-deriving the ciphertext (which would require
// re-reading the plaintext source, not always possible, and would in any
// case still produce identical bytes since sealing is deterministic --
// the cache exists purely to avoid that re-read).
type CachingGCMEncryptStream struct {
	mu sync.Mutex

	key, iv, aad []byte
	src          io.Reader

	ciphertext []byte // full sealed output once sealed is true
	sealed     bool
	sealErr    error

	anchor int // lowest offset still guaranteed to be cached
	pos    int // current read position
}

// NewCachingGCMEncryptStream builds a CachingGCMEncryptStream.
func NewCachingGCMEncryptStream(src io.Reader, key, iv, aad []byte) *CachingGCMEncryptStream {
	return &CachingGCMEncryptStream{key: key, iv: iv, aad: aad, src: src}
}

func (s *CachingGCMEncryptStream) seal() {
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
	s.ciphertext = ct
}

// Read serves bytes starting at the stream's current position.
func (s *CachingGCMEncryptStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seal()
	if s.sealErr != nil {
		return 0, s.sealErr
	}
	if s.pos >= len(s.ciphertext) {
		return 0, io.EOF
	}
	n := copy(p, s.ciphertext[s.pos:])
	s.pos += n
	return n, nil
}

// SeekTo rewinds (or fast-forwards within already-sealed output) the read
// position to pos. pos must lie in [anchor, len(ciphertext sealed so
// far)]; anything else is an InvalidArgument caller error, matching the
// property that rewinding below the anchor or beyond what has been
// produced is never valid.
func (s *CachingGCMEncryptStream) SeekTo(pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seal()
	if s.sealErr != nil {
		return s.sealErr
	}
	if pos < s.anchor || pos > len(s.ciphertext) {
		return cryptoerr.New(cryptoerr.InvalidArgument, "seek position is outside the cached window")
	}
	s.pos = pos
	return nil
}

// ClearToPosition advances the anchor to p, permitting the cache to
// discard ciphertext below p on a future trim. It never discards bytes
// the caller has not yet acknowledged: p must not exceed the current read
// position.
func (s *CachingGCMEncryptStream) ClearToPosition(p int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p > s.pos {
		return cryptoerr.New(cryptoerr.InvalidArgument, "cannot clear past the current read position")
	}
	if p < s.anchor {
		return nil
	}
	s.anchor = p
	return nil
}

// Anchor returns the current anchor position (for tests / diagnostics).
func (s *CachingGCMEncryptStream) Anchor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchor
}

// bytesFrom returns a fresh reader over the cached window starting at
// off. Nothing in this module calls it at present.
func (s *CachingGCMEncryptStream) bytesFrom(off int) *bytes.Reader {
	return bytes.NewReader(s.ciphertext[off:])
}
