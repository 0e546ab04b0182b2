package kmsprovider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"golang.org/x/time/rate"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// AWSKMS implements Provider against the real AWS KMS service. A token
// bucket throttles calls to stay under KMS's per-key request quota
// instead of letting the caller hit ThrottlingException and retry blind.
type AWSKMS struct {
	client  *kms.Client
	limiter *rate.Limiter
}

// AWSKMSOption configures an AWSKMS at construction.
type AWSKMSOption func(*AWSKMS)

// WithRateLimit overrides the default KMS call rate (requests/second).
func WithRateLimit(perSecond float64, burst int) AWSKMSOption {
	return func(a *AWSKMS) {
		a.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewAWSKMS builds an AWSKMS client for the given region, loading
// credentials from the standard AWS credential chain.
func NewAWSKMS(ctx context.Context, region string, opts ...AWSKMSOption) (*AWSKMS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	a := &AWSKMS{
		client:  kms.NewFromConfig(cfg),
		limiter: rate.NewLimiter(rate.Limit(20), 10),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// GenerateDataKey calls KMS GenerateDataKey with KeySpec AES_256.
func (a *AWSKMS) GenerateDataKey(ctx context.Context, keyID string, encryptionContext map[string]string) (DataKey, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return DataKey{}, cryptoerr.Wrap(cryptoerr.Cancelled, "rate limiter wait was cancelled", err)
	}
	out, err := a.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:             aws.String(keyID),
		EncryptionContext: encryptionContext,
		KeySpec:           types.DataKeySpecAes256,
	})
	if err != nil {
		return DataKey{}, cryptoerr.Wrap(cryptoerr.CryptoError, "AWS KMS GenerateDataKey failed", err)
	}
	return DataKey{Plaintext: out.Plaintext, Ciphertext: out.CiphertextBlob}, nil
}

// Decrypt calls KMS Decrypt.
func (a *AWSKMS) Decrypt(ctx context.Context, ciphertext []byte, encryptionContext map[string]string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Cancelled, "rate limiter wait was cancelled", err)
	}
	out, err := a.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    ciphertext,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "AWS KMS Decrypt failed", err)
	}
	return out.Plaintext, nil
}
