package config

import (
	"os"
	"testing"
)

func TestMissingProviderCredentialsVault(t *testing.T) {
	t.Setenv("S3CRYPT_KMS_PROVIDER", "vault")
	t.Setenv("S3CRYPT_VAULT_ADDR", "")
	t.Setenv("S3CRYPT_VAULT_TOKEN", "")
	os.Unsetenv("S3CRYPT_VAULT_ADDR")
	os.Unsetenv("S3CRYPT_VAULT_TOKEN")

	missing := missingProviderCredentials()
	if len(missing) != 2 {
		t.Fatalf("expected both vault credentials flagged missing, got %v", missing)
	}
}

func TestMissingProviderCredentialsAWSKMSSatisfied(t *testing.T) {
	t.Setenv("S3CRYPT_KMS_PROVIDER", "aws-kms")
	t.Setenv("S3CRYPT_AWS_KMS_KEY_ID", "arn:aws:kms:us-east-1:1234:key/abc")

	if missing := missingProviderCredentials(); len(missing) != 0 {
		t.Errorf("expected no missing credentials once the key id is set, got %v", missing)
	}
}

func TestMissingProviderCredentialsMockNeedsNothing(t *testing.T) {
	t.Setenv("S3CRYPT_KMS_PROVIDER", "mock")
	if missing := missingProviderCredentials(); len(missing) != 0 {
		t.Errorf("mock provider should never report missing credentials, got %v", missing)
	}
}

func TestLoadEnvOnceMarksLoaded(t *testing.T) {
	LoadEnvOnce()
	if !IsEnvLoaded() {
		t.Error("expected IsEnvLoaded to be true after LoadEnvOnce runs")
	}
}
