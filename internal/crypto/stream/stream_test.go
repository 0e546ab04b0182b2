package stream

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"io"
	"testing"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
)

func TestGCMEncryptDecryptRoundTrip(t *testing.T) {
	key, _ := primitives.RandomBytes(32)
	iv, _ := primitives.RandomBytes(12)
	plaintext := bytes.Repeat([]byte("payload-"), 4096)

	enc := NewGCMEncryptStream(bytes.NewReader(plaintext), key, iv, nil)
	ciphertext, err := io.ReadAll(enc)
	if err != nil {
		t.Fatalf("encrypt stream: %v", err)
	}

	dec := NewGCMDecryptStream(bytes.NewReader(ciphertext), key, iv, nil)
	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("decrypt stream: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Error("round trip did not reproduce the original plaintext")
	}
}

func TestGCMDecryptStreamRejectsTamperedCiphertext(t *testing.T) {
	key, _ := primitives.RandomBytes(32)
	iv, _ := primitives.RandomBytes(12)
	enc := NewGCMEncryptStream(bytes.NewReader([]byte("hello")), key, iv, nil)
	ciphertext, err := io.ReadAll(enc)
	if err != nil {
		t.Fatal(err)
	}
	ciphertext[0] ^= 0x01

	dec := NewGCMDecryptStream(bytes.NewReader(ciphertext), key, iv, nil)
	_, err = io.ReadAll(dec)
	if !cryptoerr.Is(err, cryptoerr.CryptoError) {
		t.Fatalf("expected CryptoError, got %v", err)
	}
}

func TestCachingGCMEncryptStreamRewind(t *testing.T) {
	key, _ := primitives.RandomBytes(32)
	iv, _ := primitives.RandomBytes(12)
	plaintext := bytes.Repeat([]byte("abcdefgh"), 128)

	s := NewCachingGCMEncryptStream(bytes.NewReader(plaintext), key, iv, nil)
	first := make([]byte, 64)
	n, err := s.Read(first)
	if err != nil || n != 64 {
		t.Fatalf("initial read: n=%d err=%v", n, err)
	}

	if err := s.SeekTo(0); err != nil {
		t.Fatalf("SeekTo(0): %v", err)
	}
	replay := make([]byte, 64)
	if _, err := io.ReadFull(s, replay); err != nil {
		t.Fatalf("replay read: %v", err)
	}
	if !bytes.Equal(first, replay) {
		t.Error("rewound read did not reproduce the same ciphertext bytes")
	}

	if err := s.ClearToPosition(32); err != nil {
		t.Fatalf("ClearToPosition: %v", err)
	}
	if err := s.SeekTo(0); !cryptoerr.Is(err, cryptoerr.InvalidArgument) {
		t.Fatalf("seeking below the anchor should fail with InvalidArgument, got %v", err)
	}
}

func TestCBCDecryptStreamRoundTrip(t *testing.T) {
	key, _ := primitives.RandomBytes(32)
	iv, _ := primitives.RandomBytes(16)
	plaintext := []byte("legacy CBC plaintext, short")

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append([]byte(nil), plaintext...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	cbc, err := NewCBCDecryptStream(bytes.NewReader(ciphertext), key, iv)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(cbc)
	if err != nil {
		t.Fatalf("CBC decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("got %q want %q", got, plaintext)
	}
}

func TestCTRRangeDecryptStreamMatchesFullDecrypt(t *testing.T) {
	key, _ := primitives.RandomBytes(32)
	nonce, _ := primitives.RandomBytes(12)
	plaintext := bytes.Repeat([]byte{0xAB}, 64)

	ciphertextAndTag, err := primitives.GCMEncrypt(key, nonce, nil, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	total := int64(len(ciphertextAndTag))

	rangeStart, rangeEnd := int64(16), int64(31)
	rangeBody := ciphertextAndTag[rangeStart : rangeEnd+1]

	ctr, err := NewCTRRangeDecryptStream(bytes.NewReader(rangeBody), key, nonce, 16, rangeStart, rangeEnd, total)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(ctr)
	if err != nil {
		t.Fatal(err)
	}
	want := plaintext[rangeStart : rangeEnd+1]
	if !bytes.Equal(got, want) {
		t.Errorf("ranged decrypt got %x want %x", got, want)
	}
}

func TestCTRRangeDecryptStreamStopsBeforeTag(t *testing.T) {
	key, _ := primitives.RandomBytes(32)
	nonce, _ := primitives.RandomBytes(12)
	plaintext := bytes.Repeat([]byte{0xCD}, 16)

	ciphertextAndTag, err := primitives.GCMEncrypt(key, nonce, nil, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	total := int64(len(ciphertextAndTag))

	// Request the whole object including the tag region; only 16 bytes
	// of plaintext should ever be served.
	ctr, err := NewCTRRangeDecryptStream(bytes.NewReader(ciphertextAndTag), key, nonce, 16, 0, total-1, total)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(ctr)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 16 {
		t.Fatalf("expected exactly 16 plaintext bytes, got %d", len(got))
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("got %x want %x", got, plaintext)
	}
}
