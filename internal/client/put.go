package client

import (
	"bytes"
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/securestor/s3crypt/internal/crypto/envelope"
	"github.com/securestor/s3crypt/internal/crypto/instructions"
	"github.com/securestor/s3crypt/internal/crypto/stream"
	"github.com/securestor/s3crypt/internal/crypto/suite"
	"github.com/securestor/s3crypt/internal/store"
)

// Put encrypts plaintext under a freshly-wrapped CEK and stores the
// result at key, embedding the envelope in object metadata or a sidecar
// instruction-file object depending on how the Client was configured.
func (c *Client) Put(ctx context.Context, key string, plaintext io.Reader) (etag string, err error) {
	s := c.policy.EncryptSuite()

	ei, err := instructions.Assemble(ctx, c.material, s, c.kms)
	if err != nil {
		c.log.Error("failed to assemble encryption instructions", err)
		return "", err
	}

	ciphertext := stream.NewGCMEncryptStream(plaintext, ei.ContentKey, ei.ContentIV, s.ContentAAD())

	schema := envelopeSchema(s, c.useInstructionFile)
	env := ei.ToEnvelope(schema)
	if err := c.policy.CheckWireVersion(schema); err != nil {
		return "", err
	}

	objectMeta, sidecar, err := envelope.Encode(env, c.useInstructionFile)
	if err != nil {
		return "", err
	}

	if sidecar != nil {
		if _, err := c.store.PutObject(ctx, store.PutInput{
			Key:  key + envelope.InstructionFileSuffix,
			Body: bytes.NewReader(sidecar),
		}); err != nil {
			return "", err
		}
	}

	etag, err = c.store.PutObject(ctx, store.PutInput{Key: key, Body: ciphertext, Metadata: objectMeta})
	if err != nil {
		c.log.Error("failed to store encrypted object", err)
		return "", err
	}

	c.log.Info("object encrypted and stored", logrus.Fields{"key": key, "suite": s.Canonical})
	return etag, nil
}

func envelopeSchema(s suite.AlgorithmSuite, useInstructionFile bool) envelope.Schema {
	if s.ID != suite.AES256GCMHKDFSHA512CommitKey {
		return envelope.SchemaV2
	}
	if useInstructionFile {
		return envelope.SchemaV3InstructionFile
	}
	return envelope.SchemaV3Metadata
}
