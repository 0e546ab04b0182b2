package store

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// GCSStore adapts a Google Cloud Storage bucket to ObjectStore. GCS has
// no multipart-upload-id concept either; parts are staged as temporary
// objects under a per-upload prefix and merged with Compose, which caps
// at 32 source objects per call and is therefore applied in a tree rather
// than a single flat composition.
type GCSStore struct {
	bucket *storage.BucketHandle

	mu      sync.Mutex
	uploads map[string]*gcsUpload
}

type gcsUpload struct {
	key      string
	metadata map[string]string
	parts    map[int32]string // partNumber -> staged object name
}

const gcsComposeFanIn = 32

// NewGCSStore wraps bucket.
func NewGCSStore(bucket *storage.BucketHandle) *GCSStore {
	return &GCSStore{bucket: bucket, uploads: make(map[string]*gcsUpload)}
}

func (g *GCSStore) PutObject(ctx context.Context, in PutInput) (string, error) {
	w := g.bucket.Object(in.Key).NewWriter(ctx)
	w.Metadata = in.Metadata
	if _, err := io.Copy(w, in.Body); err != nil {
		w.Close()
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "GCS object write failed", err)
	}
	if err := w.Close(); err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "GCS object close failed", err)
	}
	return fmt.Sprintf("%d", w.Attrs().Generation), nil
}

func (g *GCSStore) GetObject(ctx context.Context, in GetInput) (Object, error) {
	var r *storage.Reader
	var err error
	if in.HasRange() {
		r, err = g.bucket.Object(in.Key).NewRangeReader(ctx, in.RangeStart, in.RangeEnd-in.RangeStart+1)
	} else {
		r, err = g.bucket.Object(in.Key).NewReader(ctx)
	}
	if err != nil {
		return Object{}, cryptoerr.Wrap(cryptoerr.CryptoError, "GCS object read failed", err)
	}
	return Object{Body: r, Metadata: r.Attrs.Metadata, ContentLength: r.Attrs.Size}, nil
}

func (g *GCSStore) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	attrs, err := g.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "GCS Attrs failed", err)
	}
	return attrs.Metadata, nil
}

func (g *GCSStore) DeleteObject(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil {
		return cryptoerr.Wrap(cryptoerr.CryptoError, "GCS Delete failed", err)
	}
	return nil
}

func (g *GCSStore) InitiateMultipartUpload(ctx context.Context, key string, metadata map[string]string) (string, error) {
	uploadID := uuid.NewString()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.uploads[uploadID] = &gcsUpload{key: key, metadata: metadata, parts: make(map[int32]string)}
	return uploadID, nil
}

func (g *GCSStore) UploadPart(ctx context.Context, in UploadPartInput) (string, error) {
	g.mu.Lock()
	up, ok := g.uploads[in.UploadID]
	g.mu.Unlock()
	if !ok {
		return "", cryptoerr.New(cryptoerr.ProtocolViolation, "no such upload: "+in.UploadID)
	}
	stagedName := fmt.Sprintf(".uploads/%s/%010d", in.UploadID, in.PartNumber)
	w := g.bucket.Object(stagedName).NewWriter(ctx)
	if _, err := io.Copy(w, in.Body); err != nil {
		w.Close()
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "GCS staged part write failed", err)
	}
	if err := w.Close(); err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "GCS staged part close failed", err)
	}
	g.mu.Lock()
	up.parts[in.PartNumber] = stagedName
	g.mu.Unlock()
	return stagedName, nil
}

func (g *GCSStore) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	g.mu.Lock()
	up, ok := g.uploads[uploadID]
	g.mu.Unlock()
	if !ok {
		return cryptoerr.New(cryptoerr.ProtocolViolation, "no such upload: "+uploadID)
	}
	sorted := append([]CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	names := make([]string, len(sorted))
	for i, p := range sorted {
		name, ok := up.parts[p.PartNumber]
		if !ok {
			return cryptoerr.New(cryptoerr.ProtocolViolation, fmt.Sprintf("part %d was never staged", p.PartNumber))
		}
		names[i] = name
	}

	final, err := g.composeTree(ctx, key, names, up.metadata)
	if err != nil {
		return err
	}
	for _, name := range names {
		_ = g.bucket.Object(name).Delete(ctx) // best-effort cleanup of staged parts
	}
	_ = final

	g.mu.Lock()
	delete(g.uploads, uploadID)
	g.mu.Unlock()
	return nil
}

// composeTree merges source object names into dest, splitting into
// batches of gcsComposeFanIn and recursively composing intermediate
// results when there are more sources than GCS's per-call limit allows.
func (g *GCSStore) composeTree(ctx context.Context, dest string, names []string, metadata map[string]string) (string, error) {
	if len(names) <= gcsComposeFanIn {
		srcs := make([]*storage.ObjectHandle, len(names))
		for i, n := range names {
			srcs[i] = g.bucket.Object(n)
		}
		attrs, err := g.bucket.Object(dest).ComposerFrom(srcs...).Run(ctx)
		if err != nil {
			return "", cryptoerr.Wrap(cryptoerr.CryptoError, "GCS Compose failed", err)
		}
		if len(metadata) > 0 {
			if _, err := g.bucket.Object(dest).Update(ctx, storage.ObjectAttrsToUpdate{Metadata: metadata}); err != nil {
				return "", cryptoerr.Wrap(cryptoerr.CryptoError, "GCS metadata update failed", err)
			}
		}
		return fmt.Sprintf("%d", attrs.Generation), nil
	}

	var intermediates []string
	for i := 0; i < len(names); i += gcsComposeFanIn {
		end := i + gcsComposeFanIn
		if end > len(names) {
			end = len(names)
		}
		batchDest := fmt.Sprintf("%s.compose.%d", dest, i/gcsComposeFanIn)
		if _, err := g.composeTree(ctx, batchDest, names[i:end], nil); err != nil {
			return "", err
		}
		intermediates = append(intermediates, batchDest)
	}
	gen, err := g.composeTree(ctx, dest, intermediates, metadata)
	for _, name := range intermediates {
		_ = g.bucket.Object(name).Delete(ctx)
	}
	return gen, err
}

func (g *GCSStore) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	g.mu.Lock()
	up, ok := g.uploads[uploadID]
	delete(g.uploads, uploadID)
	g.mu.Unlock()
	if ok {
		for _, name := range up.parts {
			_ = g.bucket.Object(name).Delete(ctx)
		}
	}
	return nil
}

func (g *GCSStore) ListParts(ctx context.Context, key, uploadID string) ([]CompletedPart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	up, ok := g.uploads[uploadID]
	if !ok {
		return nil, cryptoerr.New(cryptoerr.ProtocolViolation, "no such upload: "+uploadID)
	}
	out := make([]CompletedPart, 0, len(up.parts))
	for n, name := range up.parts {
		out = append(out, CompletedPart{PartNumber: n, ETag: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out, nil
}
