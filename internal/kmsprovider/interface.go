// Package kmsprovider defines the external key-management-service
// collaborator consumed by the envelope encryption layer, plus concrete
// adapters (AWS KMS, HashiCorp Vault via gocloud.dev/secrets, and an
// in-memory mock for tests).
package kmsprovider

import "context"

// DataKey is the result of GenerateDataKey: a fresh plaintext CEK and its
// KMS-encrypted counterpart, ready to travel alongside the ciphertext.
type DataKey struct {
	Plaintext  []byte
	Ciphertext []byte
}

// Provider is the KeyProvider collaborator from section 6 of the
// envelope spec. Implementations are expected to be safe for concurrent
// use; the encryption pipeline may call them from multiple goroutines at
// once (one per in-flight put/get).
type Provider interface {
	// GenerateDataKey asks the KMS to mint a fresh AES-256 data key,
	// returning both the plaintext (used immediately, then discarded)
	// and the ciphertext blob (stored with the object).
	GenerateDataKey(ctx context.Context, keyID string, encryptionContext map[string]string) (DataKey, error)

	// Decrypt recovers the plaintext CEK from its KMS-encrypted blob.
	// encryptionContext must equal what was supplied to GenerateDataKey.
	Decrypt(ctx context.Context, ciphertext []byte, encryptionContext map[string]string) ([]byte, error)
}
