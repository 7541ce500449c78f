package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"

	"closet-go/internal/config"
)

// AgeEncryptor seals data with filippo.io/age using a single X25519
// identity kept in a 0600 key file. The identity is unencrypted so that
// every command can open the stored session without a prompt.
type AgeEncryptor struct {
	keyPath string

	mu       sync.Mutex
	identity *age.X25519Identity
}

var _ Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates a new AgeEncryptor from configuration.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{keyPath: cfg.KeyPath}
}

// Setup generates a new identity and writes it to the key file. An existing
// key file is left alone and reported as an error, since replacing it would
// make anything sealed with it unreadable.
func (e *AgeEncryptor) Setup() error {
	if e.keyPath == "" {
		return fmt.Errorf("no key_path configured")
	}
	if _, err := os.Stat(e.keyPath); err == nil {
		return fmt.Errorf("key file already exists at %s", e.keyPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.keyPath), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	content := fmt.Sprintf("# public key: %s\n%s\n", identity.Recipient(), identity)
	if err := os.WriteFile(e.keyPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}

	e.mu.Lock()
	e.identity = identity
	e.mu.Unlock()
	return nil
}

// IsConfigured returns true if the key file exists.
func (e *AgeEncryptor) IsConfigured() bool {
	_, err := os.Stat(e.keyPath)
	return err == nil
}

// Seal encrypts plaintext to the identity's recipient.
func (e *AgeEncryptor) Seal(plaintext []byte) ([]byte, error) {
	identity, err := e.load()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypting data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts data produced by Seal.
func (e *AgeEncryptor) Open(ciphertext []byte) ([]byte, error) {
	identity, err := e.load()
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("creating decrypted reader: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypting data: %w", err)
	}
	return out, nil
}

// load reads and caches the identity from the key file.
func (e *AgeEncryptor) load() (*age.X25519Identity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity != nil {
		return e.identity, nil
	}

	data, err := os.ReadFile(e.keyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no key file at %s (run 'closet config init')", e.keyPath)
		}
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing key file: %w", err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			e.identity = x
			return x, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity in %s", e.keyPath)
}
