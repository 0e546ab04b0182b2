package instructions

import (
	"context"

	"github.com/securestor/s3crypt/internal/crypto/material"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
	suitepkg "github.com/securestor/s3crypt/internal/crypto/suite"
	"github.com/securestor/s3crypt/internal/kmsprovider"
)

// Assemble mints and wraps a fresh CEK under mat for the given content
// suite, deriving the V3 content key and key-commitment tag when s is the
// committing suite. kms may be nil for non-KMS materials.
func Assemble(ctx context.Context, mat material.Material, s suitepkg.AlgorithmSuite, kms kmsprovider.Provider) (EncryptionInstructions, error) {
	wr, err := wrapCEK(ctx, mat, s.KeyLength, s.Canonical, kms)
	if err != nil {
		return EncryptionInstructions{}, err
	}

	ei := EncryptionInstructions{
		Suite:               s,
		CEK:                 wr.cek,
		WrapAlgorithm:       wr.wrapAlgorithm,
		WrappedCEK:          wr.wrappedCEK,
		MaterialDescription: mat.MaterialDescription,
		EncryptionContext:   wr.encryptionContext,
	}

	if !s.Committing {
		ei.ContentKey = wr.cek
		iv, err := primitives.RandomBytes(s.IVLength)
		if err != nil {
			return EncryptionInstructions{}, err
		}
		ei.ContentIV = iv
		return ei, nil
	}

	messageID, err := primitives.RandomBytes(s.MessageIDLen)
	if err != nil {
		return EncryptionInstructions{}, err
	}
	contentKey, commitment, err := deriveCommitting(s, wr.cek, messageID, s.KDFOutputLen)
	if err != nil {
		return EncryptionInstructions{}, err
	}
	ei.MessageID = messageID
	ei.ContentKey = contentKey
	ei.KeyCommitment = commitment
	ei.ContentIV = suitepkg.FixedContentIV[:]
	return ei, nil
}

// deriveCommitting runs the two HKDF-SHA512 derivations the V3 suite
// needs from the same (cek, messageID) pair: the actual content key, and
// the key-commitment tag a decrypting client checks before trusting it.
// Each derivation's info parameter is the suite's two-byte wire id
// followed by the derivation's label, so the two derivations (and any
// future suite reusing the same labels) never collide across suites.
func deriveCommitting(s suitepkg.AlgorithmSuite, cek, messageID []byte, outLen int) (contentKey, commitment []byte, err error) {
	suiteID := s.ContentAAD()
	contentKey, err = primitives.HKDFSHA512(cek, messageID, append(append([]byte{}, suiteID...), infoDeriveKey...), outLen)
	if err != nil {
		return nil, nil, err
	}
	commitment, err = primitives.HKDFSHA512(cek, messageID, append(append([]byte{}, suiteID...), infoCommitKey...), commitmentSize)
	if err != nil {
		return nil, nil, err
	}
	return contentKey, commitment, nil
}
