// Package material models the caller-supplied key-encrypting key (KEK):
// an asymmetric key pair, a symmetric key, or a reference to a KMS key.
// Exactly one of the three is ever set on a given Material.
package material

import (
	"crypto/rsa"
	"fmt"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// Kind tags which arm of the Material sum type is populated.
type Kind int

const (
	Asymmetric Kind = iota
	Symmetric
	KMS
)

// ReservedContextKey is injected by the pipeline itself and must never be
// supplied by a caller in an encryption-context or material-description
// map; the constructors in this package reject it.
const ReservedContextKey = "aws:x-amz-cek-alg"

// Material is the caller's key-encrypting key. Exactly one of
// the asymmetric key pair (AsymmetricPublic/AsymmetricPrivate),
// SymmetricKey, or KMSKeyID is set, selected by Kind.
type Material struct {
	Kind Kind

	// Asymmetric arm: RSA-OAEP-SHA1 key pair. Public is required for
	// encrypt, Private for decrypt; a material used only for decrypt may
	// leave Public nil and vice versa.
	AsymmetricPublic  *rsa.PublicKey
	AsymmetricPrivate *rsa.PrivateKey

	// Symmetric arm: a raw AES-256 key used to wrap the CEK with AES-GCM.
	SymmetricKey []byte

	// KMS arm: a key identifier resolved by the external KeyProvider,
	// plus the encryption context (never nil on a Material from NewKMS;
	// see HasEncryptionContext for whether the caller supplied one).
	KMSKeyID          string
	EncryptionContext map[string]string

	// MaterialDescription rides alongside non-KMS wraps only; it is
	// opaque to this package beyond the reserved-key check.
	MaterialDescription map[string]string

	// contextExplicit records whether the caller passed a non-nil
	// EncryptionContext to NewKMS, even an empty one, as distinct from
	// omitting it entirely -- the two must wrap under different wire
	// algorithms ("kms" vs "kms+context").
	contextExplicit bool
}

// HasEncryptionContext reports whether the caller explicitly supplied an
// encryption context to NewKMS (even an empty map), as opposed to
// passing nil. Only meaningful for KMS materials.
func (m Material) HasEncryptionContext() bool {
	return m.contextExplicit
}

// NewAsymmetric builds a Material from an RSA key pair. Either key may be
// nil if the Material will only be used in one direction.
func NewAsymmetric(pub *rsa.PublicKey, priv *rsa.PrivateKey, matDesc map[string]string) (Material, error) {
	if err := rejectReserved(matDesc); err != nil {
		return Material{}, err
	}
	return Material{
		Kind:                 Asymmetric,
		AsymmetricPublic:     pub,
		AsymmetricPrivate:    priv,
		MaterialDescription:  matDesc,
	}, nil
}

// NewSymmetric builds a Material from a raw AES-256 key.
func NewSymmetric(key []byte, matDesc map[string]string) (Material, error) {
	if len(key) != 32 {
		return Material{}, cryptoerr.New(cryptoerr.InvalidArgument, fmt.Sprintf("symmetric key must be 32 bytes, got %d", len(key)))
	}
	if err := rejectReserved(matDesc); err != nil {
		return Material{}, err
	}
	return Material{
		Kind:                Symmetric,
		SymmetricKey:        key,
		MaterialDescription: matDesc,
	}, nil
}

// NewKMS builds a Material referencing a KMS key. A non-nil
// encryptionContext (even an empty one) selects the "kms+context" wrap; nil
// selects the plain "kms" wrap and is stored as an empty map.
func NewKMS(keyID string, encryptionContext map[string]string) (Material, error) {
	if err := rejectReserved(encryptionContext); err != nil {
		return Material{}, err
	}
	explicit := encryptionContext != nil
	if encryptionContext == nil {
		encryptionContext = map[string]string{}
	}
	return Material{
		Kind:              KMS,
		KMSKeyID:          keyID,
		EncryptionContext: encryptionContext,
		contextExplicit:   explicit,
	}, nil
}

func rejectReserved(m map[string]string) error {
	if _, ok := m[ReservedContextKey]; ok {
		return cryptoerr.New(cryptoerr.InvalidArgument, fmt.Sprintf("%q is reserved and may not be caller-supplied", ReservedContextKey))
	}
	return nil
}
