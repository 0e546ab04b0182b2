package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/envelope"
	"github.com/securestor/s3crypt/internal/crypto/instructions"
	"github.com/securestor/s3crypt/internal/crypto/stream"
	"github.com/securestor/s3crypt/internal/crypto/suite"
	"github.com/securestor/s3crypt/internal/store"
)

// Get decrypts and returns the full plaintext body of the object at key.
// The caller must read the returned reader to completion (and check the
// final error) before trusting any byte: GCM/CBC streams here only
// authenticate once the whole ciphertext has been consumed.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	meta, err := c.store.GetMetadata(ctx, key)
	if err != nil {
		return nil, err
	}

	env, err := c.loadEnvelope(ctx, key, meta)
	if err != nil {
		return nil, err
	}

	ei, err := c.checkAndDisassemble(ctx, env)
	if err != nil {
		return nil, err
	}

	obj, err := c.store.GetObject(ctx, store.GetInput{Key: key, RangeStart: -1, RangeEnd: -1})
	if err != nil {
		return nil, err
	}

	var plaintext io.Reader
	if ei.Suite.ID == suite.AES256CBCIV16NoKDF {
		cbc, err := stream.NewCBCDecryptStream(obj.Body, ei.ContentKey, ei.ContentIV)
		if err != nil {
			obj.Body.Close()
			return nil, err
		}
		plaintext = cbc
	} else {
		plaintext = stream.NewGCMDecryptStream(obj.Body, ei.ContentKey, ei.ContentIV, ei.Suite.ContentAAD())
	}

	c.log.Info("object decrypted", logrus.Fields{"key": key, "suite": ei.Suite.Canonical})
	return readCloser{Reader: plaintext, closer: obj.Body}, nil
}

// GetRange decrypts only the requested inclusive byte range [start, end]
// of a GCM-encrypted object (V2 or V3), using the GCM-to-CTR nonce
// translation. The full object is requested only to learn its length (its
// body is closed unread); the GCM tag is not verified. Legacy CBC objects
// do not support ranged reads.
func (c *Client) GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	meta, err := c.store.GetMetadata(ctx, key)
	if err != nil {
		return nil, err
	}

	env, err := c.loadEnvelope(ctx, key, meta)
	if err != nil {
		return nil, err
	}

	ei, err := c.checkAndDisassemble(ctx, env)
	if err != nil {
		return nil, err
	}
	if ei.Suite.ID == suite.AES256CBCIV16NoKDF {
		return nil, cryptoerr.New(cryptoerr.UnsupportedAlgorithm, "ranged reads are not supported for legacy CBC objects")
	}

	full, err := c.store.GetObject(ctx, store.GetInput{Key: key, RangeStart: -1, RangeEnd: -1})
	if err != nil {
		return nil, err
	}
	totalLen := full.ContentLength
	full.Body.Close()

	obj, err := c.store.GetObject(ctx, store.GetInput{Key: key, RangeStart: start, RangeEnd: end})
	if err != nil {
		return nil, err
	}

	ctr, err := stream.NewCTRRangeDecryptStream(obj.Body, ei.ContentKey, ei.ContentIV, ei.Suite.TagLength, start, end, totalLen)
	if err != nil {
		obj.Body.Close()
		return nil, err
	}
	return readCloser{Reader: ctr, closer: obj.Body}, nil
}

func (c *Client) loadEnvelope(ctx context.Context, key string, meta map[string]string) (envelope.Envelope, error) {
	schema := envelope.Classify(meta)
	var sidecar []byte
	if schema == envelope.SchemaV3InstructionFile {
		obj, err := c.store.GetObject(ctx, store.GetInput{Key: key + envelope.InstructionFileSuffix, RangeStart: -1, RangeEnd: -1})
		if err != nil {
			return envelope.Envelope{}, cryptoerr.Wrap(cryptoerr.NotEncrypted, "instruction file is missing", err)
		}
		defer obj.Body.Close()
		body, err := io.ReadAll(obj.Body)
		if err != nil {
			return envelope.Envelope{}, cryptoerr.Wrap(cryptoerr.CryptoError, "failed to read instruction file", err)
		}
		sidecar = body
	}
	if schema == envelope.SchemaNone {
		return envelope.Envelope{}, cryptoerr.New(cryptoerr.NotEncrypted, "object has no recognisable envelope")
	}
	return envelope.Decode(schema, meta, sidecar)
}

func (c *Client) checkAndDisassemble(ctx context.Context, env envelope.Envelope) (instructions.EncryptionInstructions, error) {
	s, ok := suite.ByCanonical(env.CEKAlgorithm)
	if !ok {
		return instructions.EncryptionInstructions{}, cryptoerr.New(cryptoerr.UnsupportedAlgorithm, "unrecognised content algorithm "+env.CEKAlgorithm)
	}
	if err := c.policy.CheckDecrypt(s); err != nil {
		return instructions.EncryptionInstructions{}, err
	}

	if c.keyCache == nil {
		return instructions.Disassemble(ctx, c.material, env, c.kms)
	}

	cacheKey := wrappedCEKCacheKey(env.WrappedCEK)
	if cek, ok := c.keyCache.Get(cacheKey); ok {
		ei, err := instructions.FromCEK(s, cek, env)
		if err == nil {
			return ei, nil
		}
		// A cached CEK that fails commitment/derivation is never valid
		// for this wrapped blob again; evict and fall through to a real
		// unwrap rather than returning the stale error.
		c.keyCache.Delete(cacheKey)
	}

	ei, err := instructions.Disassemble(ctx, c.material, env, c.kms)
	if err != nil {
		return instructions.EncryptionInstructions{}, err
	}
	c.keyCache.Set(cacheKey, ei.CEK)
	return ei, nil
}

func wrappedCEKCacheKey(wrappedCEK []byte) string {
	sum := sha256.Sum256(wrappedCEK)
	return hex.EncodeToString(sum[:])
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error { return r.closer.Close() }
