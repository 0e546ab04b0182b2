package instructions

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/envelope"
	"github.com/securestor/s3crypt/internal/crypto/material"
	"github.com/securestor/s3crypt/internal/crypto/suite"
	"github.com/securestor/s3crypt/internal/kmsprovider"
)

func TestAssembleDisassembleKMSCommitting(t *testing.T) {
	kms := kmsprovider.NewMockKMS()
	mat, err := material.NewKMS("key-1", map[string]string{"purpose": "doc"})
	if err != nil {
		t.Fatal(err)
	}

	ei, err := Assemble(context.Background(), mat, suite.GCMCommitting, kms)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(ei.KeyCommitment) != 32 {
		t.Fatalf("expected a 32-byte commitment, got %d bytes", len(ei.KeyCommitment))
	}

	env := ei.ToEnvelope(envelope.SchemaV3Metadata)
	back, err := Disassemble(context.Background(), mat, env, kms)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if !bytes.Equal(back.ContentKey, ei.ContentKey) {
		t.Error("derived content key did not round trip")
	}
}

func TestDisassembleDetectsCommitmentTamper(t *testing.T) {
	kms := kmsprovider.NewMockKMS()
	mat, err := material.NewKMS("key-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	ei, err := Assemble(context.Background(), mat, suite.GCMCommitting, kms)
	if err != nil {
		t.Fatal(err)
	}
	env := ei.ToEnvelope(envelope.SchemaV3Metadata)
	env.KeyCommitment = bytes.Repeat([]byte{0xFF}, len(env.KeyCommitment))

	_, err = Disassemble(context.Background(), mat, env, kms)
	if !cryptoerr.Is(err, cryptoerr.KeyCommitmentMismatch) {
		t.Fatalf("expected KeyCommitmentMismatch, got %v", err)
	}
}

func TestAssembleDisassembleSymmetricNonCommitting(t *testing.T) {
	key := bytes.Repeat([]byte{0x5A}, 32)
	mat, err := material.NewSymmetric(key, nil)
	if err != nil {
		t.Fatal(err)
	}

	ei, err := Assemble(context.Background(), mat, suite.GCMNoKDF, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	env := ei.ToEnvelope(envelope.SchemaV2)
	back, err := Disassemble(context.Background(), mat, env, nil)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if !bytes.Equal(back.ContentKey, ei.ContentKey) {
		t.Error("symmetric round trip did not recover the same content key")
	}
}

func TestAssembleDisassembleAsymmetric(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	mat, err := material.NewAsymmetric(&priv.PublicKey, priv, nil)
	if err != nil {
		t.Fatal(err)
	}

	ei, err := Assemble(context.Background(), mat, suite.GCMNoKDF, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	env := ei.ToEnvelope(envelope.SchemaV2)
	back, err := Disassemble(context.Background(), mat, env, nil)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if !bytes.Equal(back.ContentKey, ei.ContentKey) {
		t.Error("asymmetric round trip did not recover the same content key")
	}
}

// TestV2KMSContextRoundTripThroughObjectMetadata exercises the full
// Assemble -> Encode -> Decode -> Disassemble path for a V2 KMS wrap
// carrying a caller-supplied (non-empty) encryption context, matching
// the kms+context write mode.
func TestV2KMSContextRoundTripThroughObjectMetadata(t *testing.T) {
	kms := kmsprovider.NewMockKMS()
	mat, err := material.NewKMS("key-1", map[string]string{"purpose": "doc"})
	if err != nil {
		t.Fatal(err)
	}
	if !mat.HasEncryptionContext() {
		t.Fatal("material constructed with a non-nil context must report HasEncryptionContext")
	}

	ei, err := Assemble(context.Background(), mat, suite.GCMNoKDF, kms)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if ei.WrapAlgorithm != envelope.WrapKMSContext {
		t.Fatalf("expected kms+context wrap, got %q", ei.WrapAlgorithm)
	}

	env := ei.ToEnvelope(envelope.SchemaV2)
	meta, sidecar, err := envelope.Encode(env, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := envelope.Decode(envelope.SchemaV2, meta, sidecar)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.EncryptionContext["purpose"] != "doc" {
		t.Fatalf("encryption context did not round trip through V2 object metadata, got %+v", decoded.EncryptionContext)
	}

	back, err := Disassemble(context.Background(), mat, decoded, kms)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if !bytes.Equal(back.ContentKey, ei.ContentKey) {
		t.Error("V2 KMS+context round trip did not recover the same content key")
	}
}

// TestV2KMSPlainWrapOmitsContext checks that NewKMS(id, nil) -- no
// caller-supplied context at all -- wraps under plain "kms" and never
// writes an x-amz-matdesc field.
func TestV2KMSPlainWrapOmitsContext(t *testing.T) {
	kms := kmsprovider.NewMockKMS()
	mat, err := material.NewKMS("key-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	ei, err := Assemble(context.Background(), mat, suite.GCMNoKDF, kms)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if ei.WrapAlgorithm != envelope.WrapKMS {
		t.Fatalf("expected plain kms wrap, got %q", ei.WrapAlgorithm)
	}

	env := ei.ToEnvelope(envelope.SchemaV2)
	meta, _, err := envelope.Encode(env, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, ok := meta[envelope.KeyMatDesc]; ok {
		t.Error("plain kms wrap with no caller context must not write x-amz-matdesc")
	}
}

func TestFromCEKMatchesDisassemble(t *testing.T) {
	kms := kmsprovider.NewMockKMS()
	mat, err := material.NewKMS("key-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	ei, err := Assemble(context.Background(), mat, suite.GCMCommitting, kms)
	if err != nil {
		t.Fatal(err)
	}
	env := ei.ToEnvelope(envelope.SchemaV3Metadata)

	viaCache, err := FromCEK(suite.GCMCommitting, ei.CEK, env)
	if err != nil {
		t.Fatalf("FromCEK: %v", err)
	}
	viaUnwrap, err := Disassemble(context.Background(), mat, env, kms)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if !bytes.Equal(viaCache.ContentKey, viaUnwrap.ContentKey) {
		t.Error("FromCEK and Disassemble should derive the same content key given the same CEK")
	}
}
