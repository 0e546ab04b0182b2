package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// Memory is an in-process ObjectStore, primarily for tests, that keeps
// every object and in-flight multipart upload in a plain map guarded by a
// mutex.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memObject
	uploads map[string]*memUpload
}

type memObject struct {
	body     []byte
	metadata map[string]string
}

type memUpload struct {
	key      string
	metadata map[string]string
	parts    map[int32][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]memObject),
		uploads: make(map[string]*memUpload),
	}
}

func (m *Memory) PutObject(ctx context.Context, in PutInput) (string, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "failed to read object body", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[in.Key] = memObject{body: body, metadata: cloneMeta(in.Metadata)}
	return etagFor(body), nil
}

func (m *Memory) GetObject(ctx context.Context, in GetInput) (Object, error) {
	m.mu.Lock()
	obj, ok := m.objects[in.Key]
	m.mu.Unlock()
	if !ok {
		return Object{}, cryptoerr.New(cryptoerr.InvalidArgument, "no such object: "+in.Key)
	}
	body := obj.body
	if in.HasRange() {
		start, end := in.RangeStart, in.RangeEnd
		if end >= int64(len(body)) {
			end = int64(len(body)) - 1
		}
		if start > end || start >= int64(len(body)) {
			body = nil
		} else {
			body = body[start : end+1]
		}
	}
	return Object{
		Body:          io.NopCloser(bytes.NewReader(body)),
		Metadata:      cloneMeta(obj.metadata),
		ContentLength: int64(len(obj.body)),
	}, nil
}

func (m *Memory) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, cryptoerr.New(cryptoerr.InvalidArgument, "no such object: "+key)
	}
	return cloneMeta(obj.metadata), nil
}

func (m *Memory) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) InitiateMultipartUpload(ctx context.Context, key string, metadata map[string]string) (string, error) {
	uploadID := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[uploadID] = &memUpload{key: key, metadata: cloneMeta(metadata), parts: make(map[int32][]byte)}
	return uploadID, nil
}

func (m *Memory) UploadPart(ctx context.Context, in UploadPartInput) (string, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "failed to read part body", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[in.UploadID]
	if !ok {
		return "", cryptoerr.New(cryptoerr.ProtocolViolation, "no such upload: "+in.UploadID)
	}
	up.parts[in.PartNumber] = body
	return etagFor(body), nil
}

func (m *Memory) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[uploadID]
	if !ok {
		return cryptoerr.New(cryptoerr.ProtocolViolation, "no such upload: "+uploadID)
	}
	sorted := append([]CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })
	var full bytes.Buffer
	for _, p := range sorted {
		body, ok := up.parts[p.PartNumber]
		if !ok {
			return cryptoerr.New(cryptoerr.ProtocolViolation, fmt.Sprintf("part %d was never uploaded", p.PartNumber))
		}
		full.Write(body)
	}
	m.objects[key] = memObject{body: full.Bytes(), metadata: up.metadata}
	delete(m.uploads, uploadID)
	return nil
}

func (m *Memory) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, uploadID)
	return nil
}

func (m *Memory) ListParts(ctx context.Context, key, uploadID string) ([]CompletedPart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[uploadID]
	if !ok {
		return nil, cryptoerr.New(cryptoerr.ProtocolViolation, "no such upload: "+uploadID)
	}
	out := make([]CompletedPart, 0, len(up.parts))
	for n, body := range up.parts {
		out = append(out, CompletedPart{PartNumber: n, ETag: etagFor(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out, nil
}

func cloneMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func etagFor(body []byte) string {
	return fmt.Sprintf("%x", len(body))
}
