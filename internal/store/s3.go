package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// S3Store adapts an aws-sdk-go-v2 S3 client to ObjectStore.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store wraps client for the given bucket.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) PutObject(ctx context.Context, in PutInput) (string, error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(in.Key),
		Body:     in.Body,
		Metadata: in.Metadata,
	})
	if err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "S3 PutObject failed", err)
	}
	return aws.ToString(out.ETag), nil
}

func (s *S3Store) GetObject(ctx context.Context, in GetInput) (Object, error) {
	req := &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(in.Key)}
	if in.HasRange() {
		req.Range = aws.String(fmt.Sprintf("bytes=%d-%d", in.RangeStart, in.RangeEnd))
	}
	out, err := s.client.GetObject(ctx, req)
	if err != nil {
		return Object{}, cryptoerr.Wrap(cryptoerr.CryptoError, "S3 GetObject failed", err)
	}
	return Object{Body: out.Body, Metadata: out.Metadata, ContentLength: aws.ToInt64(out.ContentLength)}, nil
}

func (s *S3Store) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "S3 HeadObject failed", err)
	}
	return out.Metadata, nil
}

func (s *S3Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.CryptoError, "S3 DeleteObject failed", err)
	}
	return nil
}

func (s *S3Store) InitiateMultipartUpload(ctx context.Context, key string, metadata map[string]string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Metadata: metadata,
	})
	if err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "S3 CreateMultipartUpload failed", err)
	}
	return aws.ToString(out.UploadId), nil
}

func (s *S3Store) UploadPart(ctx context.Context, in UploadPartInput) (string, error) {
	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(in.Key),
		UploadId:   aws.String(in.UploadID),
		PartNumber: aws.Int32(in.PartNumber),
		Body:       in.Body,
	})
	if err != nil {
		return "", cryptoerr.Wrap(cryptoerr.CryptoError, "S3 UploadPart failed", err)
	}
	return aws.ToString(out.ETag), nil
}

func (s *S3Store) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{PartNumber: aws.Int32(p.PartNumber), ETag: aws.String(p.ETag)}
	}
	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.CryptoError, "S3 CompleteMultipartUpload failed", err)
	}
	return nil
}

func (s *S3Store) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.CryptoError, "S3 AbortMultipartUpload failed", err)
	}
	return nil
}

func (s *S3Store) ListParts(ctx context.Context, key, uploadID string) ([]CompletedPart, error) {
	out, err := s.client.ListParts(ctx, &s3.ListPartsInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "S3 ListParts failed", err)
	}
	parts := make([]CompletedPart, len(out.Parts))
	for i, p := range out.Parts {
		parts[i] = CompletedPart{PartNumber: aws.ToInt32(p.PartNumber), ETag: aws.ToString(p.ETag)}
	}
	return parts, nil
}
