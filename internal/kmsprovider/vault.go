package kmsprovider

import (
	"context"
	"fmt"

	"gocloud.dev/secrets"
	_ "gocloud.dev/secrets/hashivault" // registers the hashivault:// URI scheme

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
)

// VaultKMS implements Provider against a HashiCorp Vault transit key via
// gocloud.dev/secrets, for deployments that keep their KEK in Vault
// rather than a cloud KMS. Vault's transit engine only exposes
// encrypt/decrypt of caller-supplied plaintext, not AWS KMS's
// GenerateDataKey; GenerateDataKey is therefore synthesized here by
// drawing a fresh local CEK and asking Vault to wrap it, which is exactly
// what GenerateDataKey means from the caller's point of view.
type VaultKMS struct {
	keeper *secrets.Keeper
}

// NewVaultKMS opens a secrets.Keeper for a "hashivault://<key>" URI
// against the given Vault transit mount.
func NewVaultKMS(ctx context.Context, transitKeyURI string) (*VaultKMS, error) {
	keeper, err := secrets.OpenKeeper(ctx, transitKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open Vault transit keeper: %w", err)
	}
	return &VaultKMS{keeper: keeper}, nil
}

// GenerateDataKey draws a fresh AES-256 CEK and wraps it with Vault.
// encryptionContext has no Vault transit equivalent and is accepted only
// for interface conformance; a non-empty context is rejected since
// silently dropping it would defeat the context-binding property the
// KMS-backed wrap relies on elsewhere in this module.
func (v *VaultKMS) GenerateDataKey(ctx context.Context, keyID string, encryptionContext map[string]string) (DataKey, error) {
	if len(encryptionContext) > 0 {
		return DataKey{}, cryptoerr.New(cryptoerr.UnsupportedAlgorithm, "Vault transit wrap does not support an encryption context")
	}
	cek, err := primitives.RandomBytes(32)
	if err != nil {
		return DataKey{}, err
	}
	ct, err := v.keeper.Encrypt(ctx, cek)
	if err != nil {
		return DataKey{}, cryptoerr.Wrap(cryptoerr.CryptoError, "Vault transit encrypt failed", err)
	}
	return DataKey{Plaintext: cek, Ciphertext: ct}, nil
}

// Decrypt unwraps a CEK previously wrapped by GenerateDataKey.
func (v *VaultKMS) Decrypt(ctx context.Context, ciphertext []byte, encryptionContext map[string]string) ([]byte, error) {
	if len(encryptionContext) > 0 {
		return nil, cryptoerr.New(cryptoerr.UnsupportedAlgorithm, "Vault transit wrap does not support an encryption context")
	}
	pt, err := v.keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "Vault transit decrypt failed", err)
	}
	return pt, nil
}

// Close releases the underlying Vault client.
func (v *VaultKMS) Close() error {
	return v.keeper.Close()
}
