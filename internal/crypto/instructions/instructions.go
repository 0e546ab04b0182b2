// Package instructions assembles and disassembles EncryptionInstructions:
// the per-object bundle of content-encryption key, wrap metadata, and (for
// the V3 committing suite) message-id and key-commitment tag. This is the
// layer that turns a caller's Material into wire-ready envelope fields and
// back, independent of how those fields are laid out in object metadata.
package instructions

import (
	"github.com/securestor/s3crypt/internal/crypto/envelope"
	"github.com/securestor/s3crypt/internal/crypto/suite"
)

// HKDF info labels distinguishing the two V3 derivations performed from
// the same (CEK, message-id) pair. Each is used only after being
// prefixed with the suite's two-byte wire id (see deriveCommitting).
const (
	infoDeriveKey  = "DERIVEKEY"
	infoCommitKey  = "COMMITKEY"
	commitmentSize = 32
)

// EncryptionInstructions is the fully-assembled per-object key material:
// everything needed to either finish writing an envelope, or to begin
// decrypting content, expressed independent of the object-metadata wire
// format.
type EncryptionInstructions struct {
	Suite suite.AlgorithmSuite

	// ContentKey is what the content cipher actually uses. For V1/V2 this
	// equals CEK; for V3 it is HKDF-derived from CEK and MessageID.
	ContentKey []byte
	ContentIV  []byte

	// CEK is the raw content-encryption key as produced by the key
	// provider / random generator, before any V3 derivation. It stays set
	// on the returned instructions; the client caches it for later reads
	// and multipart uploads zero it when the upload completes or aborts.
	CEK []byte

	WrapAlgorithm string
	WrappedCEK    []byte

	MaterialDescription map[string]string
	EncryptionContext   map[string]string

	MessageID     []byte // V3 only
	KeyCommitment []byte // V3 only
}

// ToEnvelope projects the assembled instructions into the wire-level
// Envelope record for the given schema.
func (ei EncryptionInstructions) ToEnvelope(schema envelope.Schema) envelope.Envelope {
	env := envelope.Envelope{
		Schema:              schema,
		WrappedCEK:          ei.WrappedCEK,
		IV:                  ei.ContentIV,
		WrapAlgorithm:       ei.WrapAlgorithm,
		CEKAlgorithm:        ei.Suite.Canonical,
		MaterialDescription: ei.MaterialDescription,
		EncryptionContext:   ei.EncryptionContext,
		MessageID:           ei.MessageID,
		KeyCommitment:       ei.KeyCommitment,
	}
	if ei.Suite.ID == suite.AES256GCMIV12Tag16NoKDF {
		env.TagLengthBits = ei.Suite.TagLength * 8
	}
	return env
}
