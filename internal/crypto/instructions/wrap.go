package instructions

import (
	"context"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/envelope"
	"github.com/securestor/s3crypt/internal/crypto/material"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
	"github.com/securestor/s3crypt/internal/kmsprovider"
)

// wrapResult carries everything a successful wrap produces: the plaintext
// CEK to be used (and then discarded) by the caller, plus the bytes that
// get stored on the wire.
type wrapResult struct {
	cek               []byte
	wrapAlgorithm     string
	wrappedCEK        []byte
	encryptionContext map[string]string // KMS wraps only
}

// wrapCEK mints a fresh CEK (or asks the KeyProvider for one, for the KMS
// arm) sized for suiteKeyLen, and wraps it under mat. cekAlg is bound into
// the inner-wrap structure for non-KMS wraps, and into the KMS encryption
// context's reserved key for the "kms+context" wrap, so a decrypting
// client can detect a CEK wrapped for the wrong content suite. The plain
// "kms" wrap (no caller-supplied context) does not bind cekAlg.
func wrapCEK(ctx context.Context, mat material.Material, suiteKeyLen int, cekAlg string, kms kmsprovider.Provider) (wrapResult, error) {
	switch mat.Kind {
	case material.Asymmetric:
		return wrapAsymmetric(mat, suiteKeyLen, cekAlg)
	case material.Symmetric:
		return wrapSymmetric(mat, suiteKeyLen, cekAlg)
	case material.KMS:
		return wrapKMS(ctx, mat, cekAlg, kms)
	default:
		return wrapResult{}, cryptoerr.New(cryptoerr.InvalidArgument, "material has no recognised kind")
	}
}

func wrapAsymmetric(mat material.Material, suiteKeyLen int, cekAlg string) (wrapResult, error) {
	if mat.AsymmetricPublic == nil {
		return wrapResult{}, cryptoerr.New(cryptoerr.InvalidArgument, "asymmetric material has no public key to encrypt with")
	}
	cek, err := primitives.RandomBytes(suiteKeyLen)
	if err != nil {
		return wrapResult{}, err
	}
	inner, err := envelope.PackInnerWrap(cek, cekAlg)
	if err != nil {
		return wrapResult{}, err
	}
	wrapped, err := primitives.RSAOAEPEncrypt(mat.AsymmetricPublic, inner)
	if err != nil {
		return wrapResult{}, err
	}
	return wrapResult{cek: cek, wrapAlgorithm: envelope.WrapRSAOAEPSHA1, wrappedCEK: wrapped}, nil
}

func wrapSymmetric(mat material.Material, suiteKeyLen int, cekAlg string) (wrapResult, error) {
	if len(mat.SymmetricKey) == 0 {
		return wrapResult{}, cryptoerr.New(cryptoerr.InvalidArgument, "symmetric material has no key to wrap with")
	}
	cek, err := primitives.RandomBytes(suiteKeyLen)
	if err != nil {
		return wrapResult{}, err
	}
	inner, err := envelope.PackInnerWrap(cek, cekAlg)
	if err != nil {
		return wrapResult{}, err
	}
	wrapIV, err := primitives.RandomBytes(12)
	if err != nil {
		return wrapResult{}, err
	}
	sealed, err := primitives.GCMEncrypt(mat.SymmetricKey, wrapIV, nil, inner)
	if err != nil {
		return wrapResult{}, err
	}
	// The wrap IV travels prepended to the wrapped blob: nothing else in
	// the envelope has a slot reserved for a second IV.
	wrapped := make([]byte, 0, len(wrapIV)+len(sealed))
	wrapped = append(wrapped, wrapIV...)
	wrapped = append(wrapped, sealed...)
	return wrapResult{cek: cek, wrapAlgorithm: envelope.WrapAESGCM, wrappedCEK: wrapped}, nil
}

func wrapKMS(ctx context.Context, mat material.Material, cekAlg string, kms kmsprovider.Provider) (wrapResult, error) {
	if kms == nil {
		return wrapResult{}, cryptoerr.New(cryptoerr.InvalidArgument, "KMS material requires a KeyProvider")
	}
	ec := make(map[string]string, len(mat.EncryptionContext)+1)
	for k, v := range mat.EncryptionContext {
		ec[k] = v
	}
	wrapAlg := envelope.WrapKMS
	if mat.HasEncryptionContext() {
		ec[material.ReservedContextKey] = cekAlg
		wrapAlg = envelope.WrapKMSContext
	}
	dk, err := kms.GenerateDataKey(ctx, mat.KMSKeyID, ec)
	if err != nil {
		return wrapResult{}, err
	}
	return wrapResult{cek: dk.Plaintext, wrapAlgorithm: wrapAlg, wrappedCEK: dk.Ciphertext, encryptionContext: ec}, nil
}

// unwrapCEK inverts wrapCEK, given the wrap algorithm recovered from the
// envelope.
func unwrapCEK(ctx context.Context, mat material.Material, wrapAlgorithm string, wrappedCEK []byte, cekAlg string, encryptionContext map[string]string, kms kmsprovider.Provider) ([]byte, error) {
	switch wrapAlgorithm {
	case envelope.WrapRSAOAEPSHA1:
		return unwrapAsymmetric(mat, wrappedCEK, cekAlg)
	case envelope.WrapAESGCM:
		return unwrapSymmetric(mat, wrappedCEK, cekAlg)
	case envelope.WrapAESECB:
		return unwrapECB(mat, wrappedCEK)
	case envelope.WrapKMS, envelope.WrapKMSContext:
		return unwrapKMS(ctx, encryptionContext, wrappedCEK, kms)
	default:
		return nil, cryptoerr.New(cryptoerr.UnsupportedAlgorithm, "unrecognised wrap algorithm "+wrapAlgorithm)
	}
}

func unwrapAsymmetric(mat material.Material, wrappedCEK []byte, cekAlg string) ([]byte, error) {
	if mat.AsymmetricPrivate == nil {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "asymmetric material has no private key to decrypt with")
	}
	inner, err := primitives.RSAOAEPDecrypt(mat.AsymmetricPrivate, wrappedCEK)
	if err != nil {
		return nil, err
	}
	return envelope.UnpackInnerWrap(inner, cekAlg)
}

func unwrapSymmetric(mat material.Material, wrappedCEK []byte, cekAlg string) ([]byte, error) {
	if len(mat.SymmetricKey) == 0 {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "symmetric material has no key to unwrap with")
	}
	if len(wrappedCEK) < 12 {
		return nil, cryptoerr.New(cryptoerr.InvalidData, "wrapped CEK is too short to contain a wrap IV")
	}
	wrapIV, sealed := wrappedCEK[:12], wrappedCEK[12:]
	inner, err := primitives.GCMDecrypt(mat.SymmetricKey, wrapIV, nil, sealed)
	if err != nil {
		return nil, err
	}
	return envelope.UnpackInnerWrap(inner, cekAlg)
}

// unwrapECB inverts the legacy AES-ECB key-wrap found on some V1
// instruction-file sidecars. There is no inner-wrap structure here: the
// wrapped blob is the CEK itself, PKCS7-padded and ECB-encrypted directly
// under the material's symmetric key, predating the AES/GCM inner-wrap
// format.
func unwrapECB(mat material.Material, wrappedCEK []byte) ([]byte, error) {
	if len(mat.SymmetricKey) == 0 {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "symmetric material has no key to unwrap with")
	}
	return primitives.AESECBDecryptPKCS7(mat.SymmetricKey, wrappedCEK)
}

func unwrapKMS(ctx context.Context, encryptionContext map[string]string, wrappedCEK []byte, kms kmsprovider.Provider) ([]byte, error) {
	if kms == nil {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "KMS material requires a KeyProvider")
	}
	return kms.Decrypt(ctx, wrappedCEK, encryptionContext)
}
