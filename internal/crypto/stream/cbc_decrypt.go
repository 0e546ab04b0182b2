package stream

import (
	"crypto/aes"
	"crypto/cipher"
	"io"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// CBCDecryptStream decrypts legacy AES-CBC/PKCS7 ciphertext block by
// block. It is decrypt-only: the V1/V2 legacy suite is never used to
// encrypt new objects. PKCS7 unpadding requires knowing which block is
// last, so this stream holds back one decrypted block until it has
// confirmed (via a short read on the source) that no further ciphertext
// follows.
type CBCDecryptStream struct {
	mode cipher.BlockMode
	src  io.Reader

	pending []byte // decrypted bytes not yet unpadded/served
	eof     bool
	err     error
}

// NewCBCDecryptStream builds a CBCDecryptStream. key must be 32 bytes and
// iv must be aes.BlockSize (16) bytes.
func NewCBCDecryptStream(src io.Reader, key, iv []byte) (*CBCDecryptStream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "failed to create AES cipher", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "CBC IV must be 16 bytes")
	}
	return &CBCDecryptStream{mode: cipher.NewCBCDecrypter(block, iv), src: src}, nil
}

func (s *CBCDecryptStream) fill() {
	if s.eof || s.err != nil {
		return
	}
	buf := make([]byte, aes.BlockSize)
	n, err := io.ReadFull(s.src, buf)
	switch {
	case n == aes.BlockSize:
		s.mode.CryptBlocks(buf, buf)
		s.pending = append(s.pending, buf...)
	case n == 0 && err == io.EOF:
		s.eof = true
		unpadded, ok := unpadPKCS7(s.pending)
		if !ok {
			s.err = cryptoerr.New(cryptoerr.InvalidData, "invalid CBC PKCS7 padding")
			return
		}
		s.pending = unpadded
	default:
		s.err = cryptoerr.Wrap(cryptoerr.InvalidData, "CBC ciphertext is not a multiple of the block size", err)
	}
}

func (s *CBCDecryptStream) Read(p []byte) (int, error) {
	for {
		if s.err != nil {
			return 0, s.err
		}
		servable := len(s.pending)
		if !s.eof {
			// Hold back the last block: it may still need PKCS7 unpadding
			// once we learn it's final.
			servable -= aes.BlockSize
		}
		if servable > 0 {
			n := copy(p, s.pending[:servable])
			s.pending = s.pending[n:]
			return n, nil
		}
		if s.eof {
			if len(s.pending) == 0 {
				return 0, io.EOF
			}
			n := copy(p, s.pending)
			s.pending = s.pending[n:]
			return n, nil
		}
		s.fill()
	}
}

func unpadPKCS7(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return data, true
	}
	padLen := int(data[len(data)-1])
	if padLen <= 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, false
		}
	}
	return data[:len(data)-padLen], true
}
