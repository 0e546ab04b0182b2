package client

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/material"
	"github.com/securestor/s3crypt/internal/crypto/policy"
	"github.com/securestor/s3crypt/internal/kmsprovider"
	"github.com/securestor/s3crypt/internal/store"
)

func newTestClient(t *testing.T, pol policy.Policy, useInstructionFile bool) (*Client, *kmsprovider.MockKMS) {
	t.Helper()
	kms := kmsprovider.NewMockKMS()
	mat, err := material.NewKMS("key-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	c := New(store.NewMemory(), mat, pol,
		WithKMSProvider(kms),
		WithInstructionFile(useInstructionFile),
	)
	return c, kms
}

// S2-style V3 committing round trip.
func TestPutGetCommittingRoundTrip(t *testing.T) {
	pol, err := policy.New(policy.V4, policy.RequireEncryptRequireDecrypt)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestClient(t, pol, false)

	plaintext := bytes.Repeat([]byte{0xAA}, 1024)
	if _, err := c.Put(context.Background(), "obj-1", bytes.NewReader(plaintext)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	body, err := c.Get(context.Background(), "obj-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer body.Close()
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading decrypted body: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Error("decrypted plaintext does not match what was put")
	}
}

// S6-style instruction-file round trip, including the NotEncrypted case
// when the sidecar is missing.
func TestPutGetInstructionFileRoundTrip(t *testing.T) {
	pol, err := policy.New(policy.V4, policy.RequireEncryptAllowDecrypt)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestClient(t, pol, true)

	plaintext := []byte("Encryption Client Testing!")
	if _, err := c.Put(context.Background(), "obj-2", bytes.NewReader(plaintext)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	body, err := c.Get(context.Background(), "obj-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Error("decrypted plaintext mismatch")
	}

	if err := c.store.DeleteObject(context.Background(), "obj-2.instruction"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(context.Background(), "obj-2"); !cryptoerr.Is(err, cryptoerr.NotEncrypted) {
		t.Fatalf("expected NotEncrypted once the sidecar is missing, got %v", err)
	}
}

// TestPutGetNonCommittingRoundTrip exercises the ForbidEncryptAllowDecrypt
// write path, which resolves to the non-committing V2 suite -- previously
// rejected on every Put/CompleteMultipartUpload by CheckWireVersion.
func TestPutGetNonCommittingRoundTrip(t *testing.T) {
	pol, err := policy.New(policy.V4, policy.ForbidEncryptAllowDecrypt)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestClient(t, pol, false)

	plaintext := []byte("never committing, still round trips")
	if _, err := c.Put(context.Background(), "obj-v2", bytes.NewReader(plaintext)); err != nil {
		t.Fatalf("Put under ForbidEncryptAllowDecrypt: %v", err)
	}

	body, err := c.Get(context.Background(), "obj-v2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer body.Close()
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Error("non-committing V2 round trip did not reproduce the plaintext")
	}
}

func TestCommitmentTamperOnGet(t *testing.T) {
	pol, err := policy.New(policy.V4, policy.RequireEncryptRequireDecrypt)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestClient(t, pol, false)

	if _, err := c.Put(context.Background(), "obj-3", bytes.NewReader([]byte("tamper me"))); err != nil {
		t.Fatal(err)
	}

	meta, err := c.store.GetMetadata(context.Background(), "obj-3")
	if err != nil {
		t.Fatal(err)
	}
	// Flip one base64 character of the stored commitment, mirroring S5.
	commitment := []byte(meta["x-amz-d"])
	commitment[0] = flipB64Char(commitment[0])
	meta["x-amz-d"] = string(commitment)

	obj, err := c.store.GetObject(context.Background(), store.GetInput{Key: "obj-3", RangeStart: -1, RangeEnd: -1})
	if err != nil {
		t.Fatal(err)
	}
	ciphertext, err := io.ReadAll(obj.Body)
	obj.Body.Close()
	if err != nil {
		t.Fatal(err)
	}

	// Re-put the same ciphertext with the tampered metadata so Get reads
	// it back through the normal path.
	if _, err := c.store.PutObject(context.Background(), store.PutInput{
		Key:      "obj-3",
		Body:     bytes.NewReader(ciphertext),
		Metadata: meta,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(context.Background(), "obj-3"); !cryptoerr.Is(err, cryptoerr.KeyCommitmentMismatch) {
		t.Fatalf("expected KeyCommitmentMismatch, got %v", err)
	}
}

func flipB64Char(b byte) byte {
	if b == 'A' {
		return 'B'
	}
	return 'A'
}

// S4-style multipart round trip: three parts concatenate back to the
// original plaintext.
func TestMultipartRoundTrip(t *testing.T) {
	pol, err := policy.New(policy.V4, policy.RequireEncryptRequireDecrypt)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestClient(t, pol, false)

	ctx := context.Background()
	uploadID, err := c.InitiateMultipartUpload(ctx, "obj-mp")
	if err != nil {
		t.Fatalf("InitiateMultipartUpload: %v", err)
	}

	part1 := bytes.Repeat([]byte{0x01}, 1024)
	part2 := bytes.Repeat([]byte{0x02}, 2048)
	part3 := bytes.Repeat([]byte{0x03}, 512)

	if err := c.UploadPart(ctx, "obj-mp", uploadID, 1, bytes.NewReader(part1)); err != nil {
		t.Fatalf("UploadPart 1: %v", err)
	}
	if err := c.UploadPart(ctx, "obj-mp", uploadID, 2, bytes.NewReader(part2)); err != nil {
		t.Fatalf("UploadPart 2: %v", err)
	}
	if err := c.UploadPart(ctx, "obj-mp", uploadID, 3, bytes.NewReader(part3)); err != nil {
		t.Fatalf("UploadPart 3: %v", err)
	}
	if _, err := c.CompleteMultipartUpload(ctx, "obj-mp", uploadID); err != nil {
		t.Fatalf("CompleteMultipartUpload: %v", err)
	}

	body, err := c.Get(ctx, "obj-mp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer body.Close()
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}

	want := append(append(append([]byte{}, part1...), part2...), part3...)
	if !bytes.Equal(got, want) {
		t.Error("multipart round trip did not reproduce the concatenation of the uploaded parts")
	}
}

func TestUploadPartRejectsOutOfOrderPartNumbers(t *testing.T) {
	pol, err := policy.New(policy.V4, policy.RequireEncryptRequireDecrypt)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestClient(t, pol, false)

	ctx := context.Background()
	uploadID, err := c.InitiateMultipartUpload(ctx, "obj-mp-bad")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.UploadPart(ctx, "obj-mp-bad", uploadID, 2, bytes.NewReader([]byte("x"))); !cryptoerr.Is(err, cryptoerr.ProtocolViolation) {
		t.Fatalf("expected ProtocolViolation for an out-of-order part, got %v", err)
	}
}

func TestAbortMultipartUploadDropsContext(t *testing.T) {
	pol, err := policy.New(policy.V4, policy.RequireEncryptRequireDecrypt)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestClient(t, pol, false)

	ctx := context.Background()
	uploadID, err := c.InitiateMultipartUpload(ctx, "obj-mp-abort")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.UploadPart(ctx, "obj-mp-abort", uploadID, 1, bytes.NewReader([]byte("x"))); err != nil {
		t.Fatal(err)
	}
	if err := c.AbortMultipartUpload(ctx, "obj-mp-abort", uploadID); err != nil {
		t.Fatalf("AbortMultipartUpload: %v", err)
	}
	if _, ok := c.multipart.get(uploadID); ok {
		t.Error("upload context should be removed after abort")
	}
}
