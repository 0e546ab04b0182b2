// Package envelope converts between in-memory EncryptionInstructions and
// the four object-metadata mapkey schemas (V1, V2, V3-metadata,
// V3-instruction-file), and packs/unpacks the inner-wrap structure used
// by every non-KMS V2/V3 wrap.
package envelope

import (
	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// PackInnerWrap builds the [1 byte len][len bytes CEK][UTF-8 cekAlg]
// structure that non-KMS V2/V3 wraps encrypt under the KEK.
func PackInnerWrap(cek []byte, cekAlg string) ([]byte, error) {
	if len(cek) > 0xFF {
		return nil, cryptoerr.New(cryptoerr.InvalidData, "CEK too long to encode in the inner-wrap length byte")
	}
	out := make([]byte, 0, 1+len(cek)+len(cekAlg))
	out = append(out, byte(len(cek)))
	out = append(out, cek...)
	out = append(out, []byte(cekAlg)...)
	return out, nil
}

// UnpackInnerWrap parses PackInnerWrap's output and verifies the embedded
// CEK-alg string matches expectedCEKAlg -- the binding that keeps a
// decrypting client from applying the wrong content cipher to a CEK that
// was wrapped for a different one.
func UnpackInnerWrap(data []byte, expectedCEKAlg string) (cek []byte, err error) {
	if len(data) < 1 {
		return nil, cryptoerr.New(cryptoerr.InvalidData, "inner-wrap structure is empty")
	}
	n := int(data[0])
	if len(data) < 1+n {
		return nil, cryptoerr.New(cryptoerr.InvalidData, "inner-wrap length byte exceeds available data")
	}
	cek = data[1 : 1+n]
	gotAlg := string(data[1+n:])
	if gotAlg != expectedCEKAlg {
		return nil, cryptoerr.New(cryptoerr.InvalidData, "inner-wrap CEK-alg does not match the observed content suite")
	}
	out := make([]byte, n)
	copy(out, cek)
	return out, nil
}
