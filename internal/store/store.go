// Package store defines the ObjectStore collaborator the encryption
// client reads and writes ciphertext through, plus concrete adapters for
// AWS S3, Azure Blob Storage, Google Cloud Storage, and an in-memory
// double for tests.
package store

import (
	"context"
	"io"
)

// Object is a single stored item: its body plus whatever metadata the
// backend returns alongside it.
type Object struct {
	Body          io.ReadCloser
	Metadata      map[string]string
	ContentLength int64
}

// PutInput is everything ObjectStore.PutObject needs to store one object.
type PutInput struct {
	Key      string
	Body     io.Reader
	Metadata map[string]string
}

// GetInput selects an object, optionally restricted to a byte range.
// RangeStart/RangeEnd are both -1 when no range is requested; otherwise
// they are inclusive bounds, matching an HTTP Range: bytes=start-end
// request.
type GetInput struct {
	Key        string
	RangeStart int64
	RangeEnd   int64
}

// HasRange reports whether g names a byte range rather than the whole
// object.
func (g GetInput) HasRange() bool {
	return g.RangeStart >= 0 && g.RangeEnd >= 0
}

// UploadPartInput is one part of a multipart upload.
type UploadPartInput struct {
	Key        string
	UploadID   string
	PartNumber int32
	Body       io.Reader
}

// CompletedPart identifies one uploaded part for CompleteMultipartUpload.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// ObjectStore is the storage-backend collaborator. All methods are safe
// for concurrent use across different keys; behaviour for concurrent
// calls against the same key (outside a single multipart upload) is
// backend-defined.
type ObjectStore interface {
	PutObject(ctx context.Context, in PutInput) (etag string, err error)
	GetObject(ctx context.Context, in GetInput) (Object, error)
	GetMetadata(ctx context.Context, key string) (map[string]string, error)
	DeleteObject(ctx context.Context, key string) error

	InitiateMultipartUpload(ctx context.Context, key string, metadata map[string]string) (uploadID string, err error)
	UploadPart(ctx context.Context, in UploadPartInput) (etag string, err error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	ListParts(ctx context.Context, key, uploadID string) ([]CompletedPart, error)
}
