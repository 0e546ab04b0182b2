package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/google/uuid"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// AzureBlobStore adapts an Azure Blob Storage container to ObjectStore.
// Azure has no native multipart-upload-id concept; InitiateMultipartUpload
// instead mints a local upload handle that accumulates staged block IDs
// under blockblob's stage/commit-block-list API.
type AzureBlobStore struct {
	client    *azblob.Client
	container string

	mu      sync.Mutex
	uploads map[string]*azureUpload
}

type azureUpload struct {
	key      string
	metadata map[string]string
	blockIDs map[int32]string
}

// NewAzureBlobStore wraps client for the given container.
func NewAzureBlobStore(client *azblob.Client, container string) *AzureBlobStore {
	return &AzureBlobStore{
		client:    client,
		container: container,
		uploads:   make(map[string]*azureUpload),
	}
}

func (a *AzureBlobStore) PutObject(ctx context.Context, in PutInput) (string, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "failed to read object body", err)
	}
	resp, err := a.client.UploadBuffer(ctx, a.container, in.Key, body, &azblob.UploadBufferOptions{
		Metadata: toAzureMetadata(in.Metadata),
	})
	if err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "Azure UploadBuffer failed", err)
	}
	return string(*resp.ETag), nil
}

func (a *AzureBlobStore) GetObject(ctx context.Context, in GetInput) (Object, error) {
	opts := &azblob.DownloadStreamOptions{}
	if in.HasRange() {
		opts.Range = azblob.HTTPRange{Offset: in.RangeStart, Count: in.RangeEnd - in.RangeStart + 1}
	}
	resp, err := a.client.DownloadStream(ctx, a.container, in.Key, opts)
	if err != nil {
		return Object{}, cryptoerr.Wrap(cryptoerr.CryptoError, "Azure DownloadStream failed", err)
	}
	return Object{
		Body:          resp.Body,
		Metadata:      fromAzureMetadata(resp.Metadata),
		ContentLength: *resp.ContentLength,
	}, nil
}

func (a *AzureBlobStore) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	blobClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(key)
	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "Azure GetProperties failed", err)
	}
	return fromAzureMetadata(props.Metadata), nil
}

func (a *AzureBlobStore) DeleteObject(ctx context.Context, key string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, key, nil)
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.CryptoError, "Azure DeleteBlob failed", err)
	}
	return nil
}

func (a *AzureBlobStore) InitiateMultipartUpload(ctx context.Context, key string, metadata map[string]string) (string, error) {
	uploadID := uuid.NewString()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uploads[uploadID] = &azureUpload{key: key, metadata: metadata, blockIDs: make(map[int32]string)}
	return uploadID, nil
}

func (a *AzureBlobStore) UploadPart(ctx context.Context, in UploadPartInput) (string, error) {
	a.mu.Lock()
	up, ok := a.uploads[in.UploadID]
	a.mu.Unlock()
	if !ok {
		return "", cryptoerr.New(cryptoerr.ProtocolViolation, "no such upload: "+in.UploadID)
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "failed to read part body", err)
	}
	blockID := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("block-%010d", in.PartNumber)))
	bbClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlockBlobClient(in.Key)
	if _, err := bbClient.StageBlock(ctx, blockID, streaming.NopCloser(bytes.NewReader(body)), nil); err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "Azure StageBlock failed", err)
	}
	a.mu.Lock()
	up.blockIDs[in.PartNumber] = blockID
	a.mu.Unlock()
	return blockID, nil
}

func (a *AzureBlobStore) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	a.mu.Lock()
	up, ok := a.uploads[uploadID]
	a.mu.Unlock()
	if !ok {
		return cryptoerr.New(cryptoerr.ProtocolViolation, "no such upload: "+uploadID)
	}
	blockIDs := make([]string, len(parts))
	for i, p := range parts {
		id, ok := up.blockIDs[p.PartNumber]
		if !ok {
			return cryptoerr.New(cryptoerr.ProtocolViolation, fmt.Sprintf("part %d was never staged", p.PartNumber))
		}
		blockIDs[i] = id
	}
	bbClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlockBlobClient(key)
	if _, err := bbClient.CommitBlockList(ctx, blockIDs, &blockblob.CommitBlockListOptions{
		Metadata: toAzureMetadata(up.metadata),
	}); err != nil {
		return cryptoerr.Wrap(cryptoerr.CryptoError, "Azure CommitBlockList failed", err)
	}
	a.mu.Lock()
	delete(a.uploads, uploadID)
	a.mu.Unlock()
	return nil
}

func (a *AzureBlobStore) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	a.mu.Lock()
	delete(a.uploads, uploadID)
	a.mu.Unlock()
	return nil
}

func (a *AzureBlobStore) ListParts(ctx context.Context, key, uploadID string) ([]CompletedPart, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	up, ok := a.uploads[uploadID]
	if !ok {
		return nil, cryptoerr.New(cryptoerr.ProtocolViolation, "no such upload: "+uploadID)
	}
	out := make([]CompletedPart, 0, len(up.blockIDs))
	for n, id := range up.blockIDs {
		out = append(out, CompletedPart{PartNumber: n, ETag: id})
	}
	return out, nil
}

func toAzureMetadata(m map[string]string) map[string]*string {
	if m == nil {
		return nil
	}
	out := make(map[string]*string, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}

func fromAzureMetadata(m map[string]*string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
