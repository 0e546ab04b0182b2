package instructions

import (
	"context"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/envelope"
	"github.com/securestor/s3crypt/internal/crypto/material"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
	suitepkg "github.com/securestor/s3crypt/internal/crypto/suite"
	"github.com/securestor/s3crypt/internal/kmsprovider"
)

// Disassemble recovers the content key (and, for the committing suite,
// verifies the key-commitment tag) from an Envelope previously produced
// by Assemble/ToEnvelope. The commitment check runs before the content
// key is handed back, so a mismatched commitment never reaches the
// content cipher and is reported as KeyCommitmentMismatch rather than a
// generic decrypt failure.
func Disassemble(ctx context.Context, mat material.Material, env envelope.Envelope, kms kmsprovider.Provider) (EncryptionInstructions, error) {
	s, ok := suitepkg.ByCanonical(env.CEKAlgorithm)
	if !ok {
		return EncryptionInstructions{}, cryptoerr.New(cryptoerr.UnsupportedAlgorithm, "unrecognised content algorithm "+env.CEKAlgorithm)
	}

	cek, err := unwrapCEK(ctx, mat, env.WrapAlgorithm, env.WrappedCEK, s.Canonical, env.EncryptionContext, kms)
	if err != nil {
		return EncryptionInstructions{}, err
	}

	return FromCEK(s, cek, env)
}

// FromCEK finishes disassembly given an already-unwrapped CEK, letting a
// caller skip the unwrap step entirely when it has its own cache of
// previously-unwrapped CEKs keyed by wrapped-CEK bytes.
func FromCEK(s suitepkg.AlgorithmSuite, cek []byte, env envelope.Envelope) (EncryptionInstructions, error) {
	ei := EncryptionInstructions{
		Suite:               s,
		CEK:                 cek,
		WrapAlgorithm:       env.WrapAlgorithm,
		WrappedCEK:          env.WrappedCEK,
		MaterialDescription: env.MaterialDescription,
		EncryptionContext:   env.EncryptionContext,
		MessageID:           env.MessageID,
		KeyCommitment:       env.KeyCommitment,
	}

	if !s.Committing {
		ei.ContentKey = cek
		ei.ContentIV = env.IV
		return ei, nil
	}

	contentKey, commitment, err := deriveCommitting(s, cek, env.MessageID, s.KDFOutputLen)
	if err != nil {
		return EncryptionInstructions{}, err
	}
	if !primitives.ConstantTimeEqual(commitment, env.KeyCommitment) {
		return EncryptionInstructions{}, cryptoerr.New(cryptoerr.KeyCommitmentMismatch, "key commitment does not match the CEK recovered from the wrap")
	}
	ei.ContentKey = contentKey
	ei.ContentIV = suitepkg.FixedContentIV[:]
	return ei, nil
}
