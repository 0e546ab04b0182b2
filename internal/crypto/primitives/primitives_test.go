package primitives

import (
	"bytes"
	"crypto/aes"
	"testing"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

func TestGCMRoundTrip(t *testing.T) {
	key, _ := RandomBytes(32)
	iv, _ := RandomBytes(12)
	aad := []byte("aad")
	pt := []byte("hello world")

	ct, err := GCMEncrypt(key, iv, aad, pt)
	if err != nil {
		t.Fatalf("GCMEncrypt: %v", err)
	}
	got, err := GCMDecrypt(key, iv, aad, ct)
	if err != nil {
		t.Fatalf("GCMDecrypt: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Errorf("round trip mismatch: got %q want %q", got, pt)
	}
}

func TestGCMTagSensitivity(t *testing.T) {
	key, _ := RandomBytes(32)
	iv, _ := RandomBytes(12)
	ct, err := GCMEncrypt(key, iv, nil, []byte("some plaintext"))
	if err != nil {
		t.Fatal(err)
	}
	tampered := append([]byte(nil), ct...)
	tampered[len(tampered)-1] ^= 0x01

	_, err = GCMDecrypt(key, iv, nil, tampered)
	if !cryptoerr.Is(err, cryptoerr.CryptoError) {
		t.Fatalf("expected CryptoError on tag mismatch, got %v", err)
	}
}

func TestHKDFSHA512Deterministic(t *testing.T) {
	ikm := bytes.Repeat([]byte{0x42}, 32)
	salt := bytes.Repeat([]byte{0x01}, 32)
	out1, err := HKDFSHA512(ikm, salt, []byte("info"), 32)
	if err != nil {
		t.Fatal(err)
	}
	out2, err := HKDFSHA512(ikm, salt, []byte("info"), 32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out1, out2) {
		t.Error("HKDF should be deterministic for identical inputs")
	}

	other, err := HKDFSHA512(ikm, salt, []byte("other-info"), 32)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(out1, other) {
		t.Error("different info strings must yield different output")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	a := []byte("0123456789abcdef0123456789abcdef")
	b := append([]byte(nil), a...)
	if !ConstantTimeEqual(a, b) {
		t.Error("identical slices should compare equal")
	}
	for pos := 0; pos < len(a); pos++ {
		c := append([]byte(nil), a...)
		c[pos] ^= 0xFF
		if ConstantTimeEqual(a, c) {
			t.Errorf("mutated byte at position %d should not compare equal", pos)
		}
	}
	if ConstantTimeEqual(a, a[:len(a)-1]) {
		t.Error("different-length slices must never compare equal")
	}
}

func TestCTRFromGCMNonceRejectsMisalignedOffset(t *testing.T) {
	key, _ := RandomBytes(32)
	nonce, _ := RandomBytes(12)
	if _, err := CTRFromGCMNonce(key, nonce, 5); !cryptoerr.Is(err, cryptoerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for non-block-aligned offset, got %v", err)
	}
	if _, err := CTRFromGCMNonce(key, nonce[:11], 0); !cryptoerr.Is(err, cryptoerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for wrong-length nonce, got %v", err)
	}
}

func TestCTRFromGCMNonceMatchesGCMKeystreamAtOffsetZero(t *testing.T) {
	key, _ := RandomBytes(32)
	nonce, _ := RandomBytes(12)
	pt := bytes.Repeat([]byte{0xAA}, 32)

	ct, err := GCMEncrypt(key, nonce, nil, pt)
	if err != nil {
		t.Fatal(err)
	}
	ctNoTag := ct[:len(pt)]

	ctr, err := CTRFromGCMNonce(key, nonce, 0)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(pt))
	ctr.XORKeyStream(out, ctNoTag)
	if !bytes.Equal(out, pt) {
		t.Errorf("CTR-decrypted GCM ciphertext should recover plaintext at offset 0, got %x want %x", out, pt)
	}
}

func TestAESECBDecryptPKCS7RoundTrip(t *testing.T) {
	key, _ := RandomBytes(32)
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	pt := []byte("a legacy wrapped content key...")
	padLen := aes.BlockSize - len(pt)%aes.BlockSize
	padded := append(append([]byte(nil), pt...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	ct := make([]byte, len(padded))
	for off := 0; off < len(padded); off += aes.BlockSize {
		block.Encrypt(ct[off:off+aes.BlockSize], padded[off:off+aes.BlockSize])
	}

	got, err := AESECBDecryptPKCS7(key, ct)
	if err != nil {
		t.Fatalf("AESECBDecryptPKCS7: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Errorf("got %q want %q", got, pt)
	}
}

func TestRandomBytesRejectsAllZero(t *testing.T) {
	// allZero is exercised indirectly: RandomBytes must never itself
	// return an all-zero buffer for any reasonable length.
	for i := 0; i < 20; i++ {
		b, err := RandomBytes(16)
		if err != nil {
			t.Fatal(err)
		}
		if allZero(b) {
			t.Fatal("RandomBytes produced an all-zero buffer")
		}
	}
}
