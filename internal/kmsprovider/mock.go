package kmsprovider

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sort"
	"sync"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
	"github.com/securestor/s3crypt/internal/crypto/primitives"
)

// MockKMS is an in-memory Provider for tests and for CLI runs with
// kms_provider=mock (the configured default). Real KMS ciphertext blobs
// are self-describing (the service can tell which master key wrapped a
// blob without being told), so MockKMS mirrors that by holding a single
// master key for its lifetime rather than keying off keyID. It is not a
// security boundary: the master key lives only in process memory, so data
// it wrapped cannot be unwrapped by another process.
type MockKMS struct {
	mu     sync.Mutex
	master []byte // 32-byte AES-GCM master key, created on first use
}

// NewMockKMS returns a MockKMS with no master key yet; one is generated
// lazily on first GenerateDataKey/Decrypt call.
func NewMockKMS() *MockKMS {
	return &MockKMS{}
}

func (m *MockKMS) aead() (cipher.AEAD, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.master == nil {
		k, err := primitives.RandomBytes(32)
		if err != nil {
			return nil, err
		}
		m.master = k
	}
	block, err := aes.NewCipher(m.master)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "mock KMS failed to create cipher", err)
	}
	return cipher.NewGCM(block)
}

// GenerateDataKey mints a fresh 32-byte CEK and wraps it in AES-GCM under
// the mock master key, binding encryptionContext as AEAD additional data
// the same way AWS KMS binds it.
func (m *MockKMS) GenerateDataKey(ctx context.Context, keyID string, encryptionContext map[string]string) (DataKey, error) {
	aead, err := m.aead()
	if err != nil {
		return DataKey{}, err
	}
	cek, err := primitives.RandomBytes(32)
	if err != nil {
		return DataKey{}, err
	}
	nonce, err := primitives.RandomBytes(aead.NonceSize())
	if err != nil {
		return DataKey{}, err
	}
	ct := aead.Seal(nonce, nonce, cek, encodeContext(encryptionContext))
	return DataKey{Plaintext: cek, Ciphertext: ct}, nil
}

// Decrypt reverses GenerateDataKey.
func (m *MockKMS) Decrypt(ctx context.Context, ciphertext []byte, encryptionContext map[string]string) ([]byte, error) {
	aead, err := m.aead()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, cryptoerr.New(cryptoerr.InvalidData, "mock KMS ciphertext too short")
	}
	nonce, ct := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, encodeContext(encryptionContext))
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.CryptoError, "mock KMS decrypt failed", err)
	}
	return pt, nil
}

func encodeContext(ctx map[string]string) []byte {
	if len(ctx) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]byte, 0, 64)
	for _, k := range keys {
		out = append(out, []byte(fmt.Sprintf("%s=%s;", k, ctx[k]))...)
	}
	return out
}
