package client

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/envelope"
	"github.com/securestor/s3crypt/internal/crypto/instructions"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
	"github.com/securestor/s3crypt/internal/store"
)

// uploadPartContext is the per-upload-id state shared across parts: the
// envelope key material, the plaintext accumulated so far, and the part
// bookkeeping needed to detect out-of-order or concurrent callers. Go's
// AEAD interface has no incremental Seal, so unlike a real streaming
// implementation this buffers plaintext across parts and performs the
// single GCM seal at CompleteMultipartUpload; the wire contract (one
// store.UploadPart call per part, in order) is unchanged.
type uploadPartContext struct {
	mu sync.Mutex

	key    string
	suiteAAD []byte
	ei     instructions.EncryptionInstructions
	schema envelope.Schema

	nextPart  int32
	partSizes []int64 // plaintext length of each part, in order
	plaintext bytes.Buffer

	busy   bool // true while a part is mid-upload; catches concurrent callers
	closed bool
}

// multipartUploads indexes the active uploads by upload id. Guarded by mu.
type multipartUploads struct {
	mu sync.Mutex
	m  map[string]*uploadPartContext
}

func (u *multipartUploads) get(uploadID string) (*uploadPartContext, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	c, ok := u.m[uploadID]
	return c, ok
}

func (u *multipartUploads) put(uploadID string, c *uploadPartContext) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.m == nil {
		u.m = make(map[string]*uploadPartContext)
	}
	u.m[uploadID] = c
}

func (u *multipartUploads) delete(uploadID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.m, uploadID)
}

// InitiateMultipartUpload assembles a fresh EncryptionInstructions for key
// and registers an uploadPartContext for the returned upload id. The
// envelope (everything except the commitment-independent ciphertext
// itself) is already fully determined at this point, so the object
// metadata can be sent to the store immediately.
func (c *Client) InitiateMultipartUpload(ctx context.Context, key string) (uploadID string, err error) {
	s := c.policy.EncryptSuite()
	ei, err := instructions.Assemble(ctx, c.material, s, c.kms)
	if err != nil {
		return "", err
	}
	schema := envelopeSchema(s, c.useInstructionFile)
	if err := c.policy.CheckWireVersion(schema); err != nil {
		return "", err
	}
	env := ei.ToEnvelope(schema)
	objectMeta, _, err := envelope.Encode(env, c.useInstructionFile)
	if err != nil {
		return "", err
	}

	uploadID, err = c.store.InitiateMultipartUpload(ctx, key, objectMeta)
	if err != nil {
		return "", err
	}

	c.multipart.put(uploadID, &uploadPartContext{
		key:      key,
		suiteAAD: s.ContentAAD(),
		ei:       ei,
		schema:   schema,
		nextPart: 1,
	})
	return uploadID, nil
}

// UploadPart buffers one part's plaintext. Parts must arrive with
// contiguous part numbers starting at 1; any other order is a caller
// error (ProtocolViolation), as is a second concurrent call against the
// same upload id.
func (c *Client) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, plaintext io.Reader) error {
	upc, ok := c.multipart.get(uploadID)
	if !ok {
		return cryptoerr.New(cryptoerr.InvalidArgument, "unknown upload id "+uploadID)
	}

	upc.mu.Lock()
	if upc.busy {
		upc.mu.Unlock()
		return cryptoerr.New(cryptoerr.ProtocolViolation, "concurrent UploadPart calls on the same upload id")
	}
	if upc.closed {
		upc.mu.Unlock()
		return cryptoerr.New(cryptoerr.ProtocolViolation, "upload already completed or aborted")
	}
	if partNumber != upc.nextPart {
		upc.mu.Unlock()
		return cryptoerr.New(cryptoerr.ProtocolViolation, "part numbers must be contiguous starting at 1")
	}
	upc.busy = true
	upc.mu.Unlock()

	defer func() {
		upc.mu.Lock()
		upc.busy = false
		upc.mu.Unlock()
	}()

	body, err := io.ReadAll(plaintext)
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.CryptoError, "failed to read part plaintext", err)
	}

	upc.mu.Lock()
	defer upc.mu.Unlock()
	upc.plaintext.Write(body)
	upc.partSizes = append(upc.partSizes, int64(len(body)))
	upc.nextPart++
	return nil
}

// CompleteMultipartUpload seals the accumulated plaintext in one GCM
// operation, re-slices the ciphertext along the original part boundaries
// (the final authentication tag lands in the last part), uploads each
// slice, completes the store-side multipart upload, and — for
// instruction-file storage mode — writes the sidecar object now that the
// envelope is final.
func (c *Client) CompleteMultipartUpload(ctx context.Context, key, uploadID string) (etag string, err error) {
	upc, ok := c.multipart.get(uploadID)
	if !ok {
		return "", cryptoerr.New(cryptoerr.InvalidArgument, "unknown upload id "+uploadID)
	}

	upc.mu.Lock()
	if upc.busy {
		upc.mu.Unlock()
		return "", cryptoerr.New(cryptoerr.ProtocolViolation, "cannot complete while a part upload is in flight")
	}
	upc.closed = true
	plaintext := upc.plaintext.Bytes()
	sizes := upc.partSizes
	ei := upc.ei
	schema := upc.schema
	aad := upc.suiteAAD
	upc.mu.Unlock()
	defer c.multipart.delete(uploadID)
	defer zeroize(ei.CEK)
	defer zeroize(ei.ContentKey)

	ciphertext, err := primitives.GCMEncrypt(ei.ContentKey, ei.ContentIV, aad, plaintext)
	if err != nil {
		c.log.Error("failed to seal multipart object", err)
		return "", err
	}

	parts := make([]store.CompletedPart, 0, len(sizes))
	off := 0
	for i, size := range sizes {
		end := off + int(size)
		if i == len(sizes)-1 {
			end = len(ciphertext) // last slice also carries the appended tag
		}
		partETag, err := c.store.UploadPart(ctx, store.UploadPartInput{
			Key:        key,
			UploadID:   uploadID,
			PartNumber: int32(i + 1),
			Body:       bytes.NewReader(ciphertext[off:end]),
		})
		if err != nil {
			return "", err
		}
		parts = append(parts, store.CompletedPart{PartNumber: int32(i + 1), ETag: partETag})
		off = end
	}

	if err := c.store.CompleteMultipartUpload(ctx, key, uploadID, parts); err != nil {
		return "", err
	}

	if schema == envelope.SchemaV3InstructionFile {
		env := ei.ToEnvelope(schema)
		_, sidecar, err := envelope.Encode(env, true)
		if err != nil {
			return "", err
		}
		if _, err := c.store.PutObject(ctx, store.PutInput{
			Key:  key + envelope.InstructionFileSuffix,
			Body: bytes.NewReader(sidecar),
		}); err != nil {
			return "", err
		}
	}

	c.log.Info("multipart object encrypted and stored", logrus.Fields{"key": key, "parts": len(parts)})
	return "", nil
}

// AbortMultipartUpload drops the upload context (zeroizing its CEK) and
// forwards the abort to the store.
func (c *Client) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if upc, ok := c.multipart.get(uploadID); ok {
		upc.mu.Lock()
		upc.closed = true
		zeroize(upc.ei.CEK)
		zeroize(upc.ei.ContentKey)
		upc.mu.Unlock()
		c.multipart.delete(uploadID)
	}
	return c.store.AbortMultipartUpload(ctx, key, uploadID)
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
