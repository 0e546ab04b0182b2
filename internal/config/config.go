// Package config loads the encryption client's runtime configuration:
// which object-store backend and KMS provider to wire up, and the
// security-profile/commitment-policy and caching knobs that govern them.
// Values come, via viper, from environment variables, then a .env file
// (loaded once via LoadEnvOnce, filling only unset variables), and finally
// built-in defaults, in that order of precedence.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved configuration for one client instance.
type Config struct {
	// StoreBackend selects the ObjectStore adapter: s3, azureblob, gcs, or
	// memory (for local testing).
	StoreBackend string
	StoreBucket  string
	AWSRegion    string

	AzureAccountURL string
	AzureContainer  string

	GCSProjectID string

	// KMSProvider selects the kmsprovider.Provider adapter: aws-kms,
	// vault, or mock.
	KMSProvider  string
	AWSKMSKeyID  string
	VaultAddr    string
	VaultToken   string
	VaultKeyPath string

	// SecurityProfile: v2, v2-legacy, v4, v4-legacy.
	SecurityProfile string
	// CommitmentPolicy: forbid-encrypt-allow-decrypt,
	// require-encrypt-allow-decrypt, require-encrypt-require-decrypt.
	CommitmentPolicy string

	UseInstructionFile bool

	KeyCacheTTL        time.Duration
	KeyCacheMaxEntries int64
	RedisURL           string

	KMSRateLimitPerSec float64
	KMSRateLimitBurst  int

	LogLevel string
}

// Load reads configuration from .env / environment variables / defaults.
func Load() (*Config, error) {
	LoadEnvOnce()

	v := viper.New()
	v.SetEnvPrefix("S3CRYPT")
	v.AutomaticEnv()

	v.SetDefault("store_backend", "memory")
	v.SetDefault("store_bucket", "")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("azure_account_url", "")
	v.SetDefault("azure_container", "")
	v.SetDefault("gcs_project_id", "")

	v.SetDefault("kms_provider", "mock")
	v.SetDefault("aws_kms_key_id", "")
	v.SetDefault("vault_addr", "")
	v.SetDefault("vault_token", "")
	v.SetDefault("vault_key_path", "")

	v.SetDefault("security_profile", "v4")
	v.SetDefault("commitment_policy", "require-encrypt-allow-decrypt")
	v.SetDefault("use_instruction_file", false)

	v.SetDefault("key_cache_ttl_minutes", 5)
	v.SetDefault("key_cache_max_entries", 10000)
	v.SetDefault("redis_url", "")

	v.SetDefault("kms_rate_limit_per_sec", 20.0)
	v.SetDefault("kms_rate_limit_burst", 10)

	v.SetDefault("log_level", "info")

	cfg := &Config{
		StoreBackend:       v.GetString("store_backend"),
		StoreBucket:        v.GetString("store_bucket"),
		AWSRegion:          v.GetString("aws_region"),
		AzureAccountURL:    v.GetString("azure_account_url"),
		AzureContainer:     v.GetString("azure_container"),
		GCSProjectID:       v.GetString("gcs_project_id"),
		KMSProvider:        v.GetString("kms_provider"),
		AWSKMSKeyID:        v.GetString("aws_kms_key_id"),
		VaultAddr:          v.GetString("vault_addr"),
		VaultToken:         v.GetString("vault_token"),
		VaultKeyPath:       v.GetString("vault_key_path"),
		SecurityProfile:    v.GetString("security_profile"),
		CommitmentPolicy:   v.GetString("commitment_policy"),
		UseInstructionFile: v.GetBool("use_instruction_file"),
		KeyCacheTTL:        time.Duration(v.GetInt("key_cache_ttl_minutes")) * time.Minute,
		KeyCacheMaxEntries: int64(v.GetInt("key_cache_max_entries")),
		RedisURL:           v.GetString("redis_url"),
		KMSRateLimitPerSec: v.GetFloat64("kms_rate_limit_per_sec"),
		KMSRateLimitBurst:  v.GetInt("kms_rate_limit_burst"),
		LogLevel:           v.GetString("log_level"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "s3", "azureblob", "gcs", "memory":
	default:
		return fmt.Errorf("config: unknown store_backend %q", c.StoreBackend)
	}
	switch c.KMSProvider {
	case "aws-kms", "vault", "mock":
	default:
		return fmt.Errorf("config: unknown kms_provider %q", c.KMSProvider)
	}
	return nil
}
