// Package policy implements the two-axis security-profile and
// commitment-policy state machine that gates which algorithm suites a
// client is allowed to write or willing to read.
package policy

import (
	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/envelope"
	"github.com/securestor/s3crypt/internal/crypto/suite"
)

// SecurityProfile names which legacy suites a client tolerates reading,
// independent of what it writes.
type SecurityProfile int

const (
	// V2 writes only the V2 (non-committing GCM) suite, since New pairs it
	// only with ForbidEncryptAllowDecrypt, and reads V2 and V3; V1 CBC
	// objects are rejected outright.
	V2 SecurityProfile = iota
	// V2AndLegacy additionally permits reading V1 CBC objects.
	V2AndLegacy
	// V4 is the modern default: reads V2 and V3; which suite it writes is
	// decided by the CommitmentPolicy it is paired with.
	V4
	// V4AndLegacy additionally permits reading V1 CBC objects.
	V4AndLegacy
)

// CommitmentPolicy controls whether the committing V3 suite is required,
// optional, or unavailable, independent of SecurityProfile.
type CommitmentPolicy int

const (
	// ForbidEncryptAllowDecrypt never writes V3, but will read it if
	// presented.
	ForbidEncryptAllowDecrypt CommitmentPolicy = iota
	// RequireEncryptAllowDecrypt always writes V3, and will also read
	// non-committing suites permitted by SecurityProfile.
	RequireEncryptAllowDecrypt
	// RequireEncryptRequireDecrypt always writes V3, and refuses to read
	// anything else -- the strictest setting.
	RequireEncryptRequireDecrypt
)

// Policy bundles a SecurityProfile and CommitmentPolicy and enforces
// their combined validity and per-operation checks. Construct with New;
// the zero value is not valid.
type Policy struct {
	profile    SecurityProfile
	commitment CommitmentPolicy
}

// New validates the (profile, commitment) combination at construction
// time, rejecting combinations that can never produce a coherent
// encrypt/decrypt pair -- a V2-class profile (V2, V2AndLegacy) can never
// pair with a commitment policy that requires committing writes, since
// that would make the client write V3 while still nominally being a V2
// client.
func New(profile SecurityProfile, commitment CommitmentPolicy) (Policy, error) {
	if commitment != ForbidEncryptAllowDecrypt && (profile == V2 || profile == V2AndLegacy) {
		return Policy{}, cryptoerr.New(cryptoerr.PolicyViolation, "a V2-class security profile cannot pair with a commitment policy that requires committing writes")
	}
	return Policy{profile: profile, commitment: commitment}, nil
}

// EncryptSuite returns the suite a Put operation must use under this
// policy. It never depends on the object being written -- every encrypt
// under a given Policy uses the same suite.
func (p Policy) EncryptSuite() suite.AlgorithmSuite {
	if p.commitment == ForbidEncryptAllowDecrypt {
		return suite.GCMNoKDF
	}
	return suite.GCMCommitting
}

// CheckDecrypt reports whether reading an object encrypted with s is
// permitted under this policy, returning a PolicyViolation error when
// it is not.
func (p Policy) CheckDecrypt(s suite.AlgorithmSuite) error {
	if s.ID == suite.AES256CBCIV16NoKDF {
		if p.profile == V2AndLegacy || p.profile == V4AndLegacy {
			return nil
		}
		return cryptoerr.New(cryptoerr.PolicyViolation, "security profile forbids reading legacy CBC-encrypted objects")
	}
	if s.ID == suite.AES256GCMHKDFSHA512CommitKey {
		return nil
	}
	// Non-committing GCM (V2).
	if p.commitment == RequireEncryptRequireDecrypt {
		return cryptoerr.New(cryptoerr.PolicyViolation, "commitment policy requires key-committed objects; refusing to read a non-committing object")
	}
	return nil
}

// CheckWireVersion rejects writing the legacy V1 schema unconditionally
// (no policy ever writes it), and rejects writing the non-committing V2
// schema unless the commitment policy is ForbidEncryptAllowDecrypt --
// the only policy whose EncryptSuite resolves to the non-committing
// suite in the first place. Callers invoke this only on the encrypt
// path, since CheckDecrypt already governs what may be read.
func (p Policy) CheckWireVersion(schema envelope.Schema) error {
	if schema == envelope.SchemaV1 {
		return cryptoerr.New(cryptoerr.PolicyViolation, "this policy never writes the legacy CBC schema")
	}
	if schema == envelope.SchemaV2 && p.commitment != ForbidEncryptAllowDecrypt {
		return cryptoerr.New(cryptoerr.PolicyViolation, "commitment policy requires key-committed objects; refusing to write a non-committing envelope")
	}
	return nil
}
