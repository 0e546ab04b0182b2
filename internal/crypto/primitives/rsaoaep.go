package primitives

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// RSAOAEPEncrypt wraps payload (the inner-wrap structure carrying the CEK)
// under an RSA public key using OAEP with SHA-1, matching the wrap
// algorithm historically used by the V1/V2 asymmetric wrap suite.
func RSAOAEPEncrypt(pub *rsa.PublicKey, payload []byte) ([]byte, error) {
	ct, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, payload, nil)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "RSA-OAEP-SHA1 encrypt failed", err)
	}
	return ct, nil
}

// RSAOAEPDecrypt inverts RSAOAEPEncrypt.
func RSAOAEPDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	pt, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "RSA-OAEP-SHA1 decrypt failed", err)
	}
	return pt, nil
}
