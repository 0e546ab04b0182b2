package envelope

import (
	"bytes"
	"testing"
)

func TestV2RoundTrip(t *testing.T) {
	env := Envelope{
		Schema:            SchemaV2,
		WrappedCEK:        []byte("wrapped-cek-bytes"),
		IV:                bytes.Repeat([]byte{0x09}, 12),
		WrapAlgorithm:     WrapKMSContext,
		CEKAlgorithm:      "AES/GCM/NoPadding",
		TagLengthBits:     128,
		EncryptionContext: map[string]string{"aws:x-amz-cek-alg": "AES/GCM/NoPadding"},
	}

	meta, sidecar, err := Encode(env, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if sidecar != nil {
		t.Fatalf("V2 metadata mode must not produce a sidecar")
	}
	if Classify(meta) != SchemaV2 {
		t.Fatalf("Classify: expected SchemaV2, got %v", Classify(meta))
	}

	got, err := Decode(SchemaV2, meta, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got.WrappedCEK, env.WrappedCEK) || !bytes.Equal(got.IV, env.IV) {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.WrapAlgorithm != env.WrapAlgorithm || got.CEKAlgorithm != env.CEKAlgorithm {
		t.Errorf("algorithm fields mismatch: got %+v", got)
	}
	if got.TagLengthBits != 128 {
		t.Errorf("expected tag length 128, got %d", got.TagLengthBits)
	}
	if got.EncryptionContext["aws:x-amz-cek-alg"] != "AES/GCM/NoPadding" {
		t.Errorf("kms+context wrap must round trip its encryption context through x-amz-matdesc, got %+v", got.EncryptionContext)
	}
}

// TestV2PlainWrapRoundTripsMaterialDescription checks a non-KMS V2 wrap
// (where the matdesc slot holds a caller-supplied material description,
// not an encryption context) decodes back into MaterialDescription, not
// EncryptionContext.
func TestV2PlainWrapRoundTripsMaterialDescription(t *testing.T) {
	env := Envelope{
		Schema:              SchemaV2,
		WrappedCEK:          []byte("wrapped-cek-bytes"),
		IV:                  bytes.Repeat([]byte{0x09}, 12),
		WrapAlgorithm:       WrapAESGCM,
		CEKAlgorithm:        "AES/GCM/NoPadding",
		MaterialDescription: map[string]string{"purpose": "doc"},
	}
	meta, _, err := Encode(env, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(SchemaV2, meta, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.MaterialDescription["purpose"] != "doc" {
		t.Errorf("expected material description to round trip, got %+v", got.MaterialDescription)
	}
	if got.EncryptionContext != nil {
		t.Errorf("non-KMS wrap must not populate EncryptionContext, got %+v", got.EncryptionContext)
	}
}

func TestV3MetadataRoundTrip(t *testing.T) {
	env := Envelope{
		Schema:          SchemaV3Metadata,
		WrappedCEK:      []byte("wrapped-v3-cek"),
		WrapAlgorithm:   WrapKMSContext,
		CEKAlgorithm:    "115",
		KeyCommitment:   bytes.Repeat([]byte{0x07}, 32),
		MessageID:       bytes.Repeat([]byte{0x03}, 32),
		EncryptionContext: map[string]string{"purpose": "doc"},
	}

	meta, sidecar, err := Encode(env, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if sidecar != nil {
		t.Fatal("V3 metadata mode must not produce a sidecar")
	}
	if Classify(meta) != SchemaV3Metadata {
		t.Fatalf("Classify: expected SchemaV3Metadata, got %v", Classify(meta))
	}

	got, err := Decode(SchemaV3Metadata, meta, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got.KeyCommitment, env.KeyCommitment) || !bytes.Equal(got.MessageID, env.MessageID) {
		t.Errorf("commitment/message-id mismatch: got %+v", got)
	}
	if got.EncryptionContext["purpose"] != "doc" {
		t.Errorf("expected encryption context to round trip, got %+v", got.EncryptionContext)
	}
}

func TestV3InstructionFileRoundTrip(t *testing.T) {
	env := Envelope{
		Schema:        SchemaV3InstructionFile,
		WrappedCEK:    []byte("wrapped-v3-sidecar-cek"),
		WrapAlgorithm: WrapRSAOAEPSHA1,
		CEKAlgorithm:  "115",
		KeyCommitment: bytes.Repeat([]byte{0x0A}, 32),
		MessageID:     bytes.Repeat([]byte{0x0B}, 32),
	}

	meta, sidecar, err := Encode(env, true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if sidecar == nil {
		t.Fatal("instruction-file mode must produce a sidecar")
	}
	if _, hasK := meta[KeyV3WrappedCEK]; hasK {
		t.Error("object metadata must not carry the wrapped CEK in instruction-file mode")
	}
	if Classify(meta) != SchemaV3InstructionFile {
		t.Fatalf("Classify: expected SchemaV3InstructionFile, got %v", Classify(meta))
	}

	got, err := Decode(SchemaV3InstructionFile, meta, sidecar)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got.WrappedCEK, env.WrappedCEK) {
		t.Errorf("wrapped CEK did not round trip through the sidecar")
	}
}

func TestClassifyNoEnvelope(t *testing.T) {
	if got := Classify(map[string]string{"unrelated": "value"}); got != SchemaNone {
		t.Errorf("expected SchemaNone, got %v", got)
	}
}

func TestInnerWrapPackUnpackRoundTrip(t *testing.T) {
	cek := bytes.Repeat([]byte{0x11}, 32)
	packed, err := PackInnerWrap(cek, "AES/GCM/NoPadding")
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnpackInnerWrap(packed, "AES/GCM/NoPadding")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, cek) {
		t.Errorf("got %x want %x", got, cek)
	}
}

func TestInnerWrapAlgMismatchIsInvalidData(t *testing.T) {
	cek := bytes.Repeat([]byte{0x22}, 32)
	packed, err := PackInnerWrap(cek, "AES/GCM/NoPadding")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnpackInnerWrap(packed, "AES/CBC/PKCS5Padding"); err == nil {
		t.Fatal("expected an error when the embedded CEK-alg does not match the observed suite")
	}
}

func TestShortV3CodeTableRoundTrip(t *testing.T) {
	for _, canonical := range []string{WrapKMS, WrapKMSContext, WrapRSAOAEPSHA1, WrapAESGCM} {
		code, err := ShortV3Code(canonical)
		if err != nil {
			t.Fatalf("ShortV3Code(%q): %v", canonical, err)
		}
		back, err := CanonicalFromShortV3(code)
		if err != nil {
			t.Fatalf("CanonicalFromShortV3(%q): %v", code, err)
		}
		if back != canonical {
			t.Errorf("round trip mismatch: %q -> %q -> %q", canonical, code, back)
		}
	}
}

func TestCanonicalFromShortV3RejectsUnknownCode(t *testing.T) {
	if _, err := CanonicalFromShortV3("zz"); err == nil {
		t.Fatal("expected an error for an unrecognised short code")
	}
}
