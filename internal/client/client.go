// Package client assembles the crypto primitives, object store, and key
// provider into the put/get API an application actually calls.
package client

import (
	"github.com/securestor/s3crypt/internal/cache"
	"github.com/securestor/s3crypt/internal/crypto/material"
	"github.com/securestor/s3crypt/internal/crypto/policy"
	"github.com/securestor/s3crypt/internal/kmsprovider"
	"github.com/securestor/s3crypt/internal/logger"
	"github.com/securestor/s3crypt/internal/store"
)

// Client is the top-level entry point: one Material, one Policy, one
// ObjectStore, one KeyProvider. Safe for concurrent use.
type Client struct {
	store    store.ObjectStore
	material material.Material
	policy   policy.Policy
	kms      kmsprovider.Provider
	keyCache *cache.KeyCache
	log      *logger.Logger

	useInstructionFile bool
	multipart          multipartUploads
}

// Option configures a Client at construction.
type Option func(*Client)

// WithKMSProvider attaches a KeyProvider for KMS-backed Material.
func WithKMSProvider(p kmsprovider.Provider) Option {
	return func(c *Client) { c.kms = p }
}

// WithKeyCache attaches a local CEK cache consulted before any unwrap.
func WithKeyCache(kc *cache.KeyCache) Option {
	return func(c *Client) { c.keyCache = kc }
}

// WithLogger overrides the default logger, which writes JSON at Info
// level to stdout under the component name "s3crypt-client".
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithInstructionFile makes Put write the wrapped key of a V3 (committing
// suite) envelope to a sidecar ".instruction" object rather than embedding
// it in object metadata. V2 envelopes are always written to object
// metadata, whatever this option says.
func WithInstructionFile(enabled bool) Option {
	return func(c *Client) { c.useInstructionFile = enabled }
}

// New builds a Client. mat supplies the key-encrypting key, pol the
// security-profile/commitment-policy pair governing which suites may be
// written or read, and os is the backing object store.
func New(os store.ObjectStore, mat material.Material, pol policy.Policy, opts ...Option) *Client {
	c := &Client{
		store:    os,
		material: mat,
		policy:   pol,
		log:      logger.NewLogger("s3crypt-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
