package config

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var (
	envOnce   sync.Once
	envLoaded bool
)

// LoadEnvOnce loads the .env file at most once per process. Load calls
// this before consulting viper. A value in the .env file in the working
// directory (or APP_ROOT) fills in only variables that are not already set
// in the process environment; an exported value is never overridden.
func LoadEnvOnce() {
	envOnce.Do(func() {
		loadEnvironment()
	})
}

// loadEnvironment tries each candidate .env location in turn, then logs
// which backend/provider combination the process will end up wiring so a
// missing companion variable (e.g. kms_provider=vault with no VAULT_ADDR)
// shows up in the startup log instead of the first failed KMS call.
func loadEnvironment() {
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
		filepath.Join(os.Getenv("APP_ROOT"), ".env"),
	}

	var loaded bool
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				log.Printf("Environment loaded from: %s", path)
				loaded = true
				break
			}
		}
	}
	if !loaded {
		log.Println("no .env file found; using process environment and built-in defaults")
	}

	if missing := missingProviderCredentials(); len(missing) > 0 {
		log.Printf("warning: S3CRYPT_KMS_PROVIDER=%s but missing %v", os.Getenv("S3CRYPT_KMS_PROVIDER"), missing)
	}

	envLoaded = true
}

// missingProviderCredentials reports which companion environment
// variables the selected KMS provider needs but doesn't have set. A gap
// here means Config.Load will succeed (kms_provider is validated only
// against its own enum) but the first GenerateDataKey/Decrypt call will
// fail, so it's worth surfacing at startup rather than at first use.
func missingProviderCredentials() []string {
	var missing []string
	switch os.Getenv("S3CRYPT_KMS_PROVIDER") {
	case "vault":
		if os.Getenv("S3CRYPT_VAULT_ADDR") == "" {
			missing = append(missing, "S3CRYPT_VAULT_ADDR")
		}
		if os.Getenv("S3CRYPT_VAULT_TOKEN") == "" {
			missing = append(missing, "S3CRYPT_VAULT_TOKEN")
		}
	case "aws-kms":
		if os.Getenv("S3CRYPT_AWS_KMS_KEY_ID") == "" {
			missing = append(missing, "S3CRYPT_AWS_KMS_KEY_ID")
		}
	}
	return missing
}

// IsEnvLoaded reports whether LoadEnvOnce has run to completion.
func IsEnvLoaded() bool {
	return envLoaded
}
