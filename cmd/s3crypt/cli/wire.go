package cli

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/securestor/s3crypt/internal/cache"
	"github.com/securestor/s3crypt/internal/client"
	"github.com/securestor/s3crypt/internal/config"
	"github.com/securestor/s3crypt/internal/crypto/material"
	"github.com/securestor/s3crypt/internal/crypto/policy"
	"github.com/securestor/s3crypt/internal/kmsprovider"
	"github.com/securestor/s3crypt/internal/logger"
	"github.com/securestor/s3crypt/internal/store"
)

// buildClient loads configuration and wires a Client end to end, the way
// a real deployment would: pick the store backend, the key provider, and
// the policy, then hand all three to client.New.
func buildClient(ctx context.Context) (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	objStore, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building object store: %w", err)
	}

	kms, err := buildKMS(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building key provider: %w", err)
	}

	pol, err := buildPolicy(cfg)
	if err != nil {
		return nil, fmt.Errorf("building policy: %w", err)
	}

	mat, err := material.NewKMS(cfg.AWSKMSKeyID, map[string]string{})
	if err != nil {
		return nil, err
	}

	keyCache, err := cache.NewKeyCache(cfg.KeyCacheMaxEntries, cfg.KeyCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("building key cache: %w", err)
	}

	log := logger.NewLogger("s3crypt-cli")

	return client.New(objStore, mat, pol,
		client.WithKMSProvider(kms),
		client.WithKeyCache(keyCache),
		client.WithLogger(log),
		client.WithInstructionFile(cfg.UseInstructionFile),
	), nil
}

func buildStore(ctx context.Context, cfg *config.Config) (store.ObjectStore, error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemory(), nil
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, err
		}
		return store.NewS3Store(s3.NewFromConfig(awsCfg), cfg.StoreBucket), nil
	case "azureblob":
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, err
		}
		c, err := azblob.NewClient(cfg.AzureAccountURL, cred, nil)
		if err != nil {
			return nil, err
		}
		return store.NewAzureBlobStore(c, cfg.AzureContainer), nil
	case "gcs":
		c, err := storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		return store.NewGCSStore(c.Bucket(cfg.StoreBucket)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func buildKMS(ctx context.Context, cfg *config.Config) (kmsprovider.Provider, error) {
	switch cfg.KMSProvider {
	case "mock":
		return kmsprovider.NewMockKMS(), nil
	case "aws-kms":
		return kmsprovider.NewAWSKMS(ctx, cfg.AWSRegion, kmsprovider.WithRateLimit(cfg.KMSRateLimitPerSec, cfg.KMSRateLimitBurst))
	case "vault":
		return kmsprovider.NewVaultKMS(ctx, cfg.VaultKeyPath)
	default:
		return nil, fmt.Errorf("unknown KMS provider %q", cfg.KMSProvider)
	}
}

func buildPolicy(cfg *config.Config) (policy.Policy, error) {
	var profile policy.SecurityProfile
	switch cfg.SecurityProfile {
	case "v2":
		profile = policy.V2
	case "v2-legacy":
		profile = policy.V2AndLegacy
	case "v4":
		profile = policy.V4
	case "v4-legacy":
		profile = policy.V4AndLegacy
	default:
		return policy.Policy{}, fmt.Errorf("unknown security profile %q", cfg.SecurityProfile)
	}

	var commitment policy.CommitmentPolicy
	switch cfg.CommitmentPolicy {
	case "forbid-encrypt-allow-decrypt":
		commitment = policy.ForbidEncryptAllowDecrypt
	case "require-encrypt-allow-decrypt":
		commitment = policy.RequireEncryptAllowDecrypt
	case "require-encrypt-require-decrypt":
		commitment = policy.RequireEncryptRequireDecrypt
	default:
		return policy.Policy{}, fmt.Errorf("unknown commitment policy %q", cfg.CommitmentPolicy)
	}

	return policy.New(profile, commitment)
}
