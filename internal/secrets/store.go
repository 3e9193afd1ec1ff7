// Package secrets caches credentials between runs in an encrypted file and
// resolves them from the environment, the cache or an interactive prompt.
package secrets

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Well-known secret names.
const (
	GroqAPIKey  = "groq_api_key"
	GitHubToken = "github_token"
)

// ErrNotFound is returned when a secret is not stored.
var ErrNotFound = errors.New("secret not found")

const (
	fileVersion byte = 0x01
	saltSize         = 16
	keySize          = chacha20poly1305.KeySize
)

// kdfParams are the argon2id cost parameters.
type kdfParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

var defaultKDF = kdfParams{Time: 1, Memory: 64 * 1024, Threads: 4}

type storeFile struct {
	Version int               `json:"version"`
	Salt    []byte            `json:"salt"`
	KDF     kdfParams         `json:"kdf"`
	Entries map[string][]byte `json:"entries"`
}

// Store reads and writes named secrets.
type Store interface {
	Get(name string) (string, error)
	Put(name, value string) error
}

// FileStore keeps secrets in a single JSON document. Each value is sealed
// with XChaCha20-Poly1305 under a key derived from the passphrase with
// argon2id; the secret name is bound as associated data so values cannot be
// swapped between names.
type FileStore struct {
	path       string
	passphrase []byte
	kdf        kdfParams

	mu sync.Mutex
}

// NewFileStore opens the store at path. An empty passphrase falls back to a
// value derived from the host and user, which only obscures the file from
// casual reads.
func NewFileStore(path, passphrase string) *FileStore {
	if passphrase == "" {
		passphrase = hostPassphrase()
	}
	return &FileStore{path: path, passphrase: []byte(passphrase), kdf: defaultKDF}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Get decrypts the named secret.
func (s *FileStore) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return "", err
	}

	sealed, ok := file.Entries[name]
	if !ok {
		return "", ErrNotFound
	}

	key := s.deriveKey(file.Salt, file.KDF)
	plaintext, err := open(key, sealed, name)
	if err != nil {
		return "", fmt.Errorf("decrypt secret %q: %w", name, err)
	}
	return string(plaintext), nil
}

// Put encrypts and stores value under name, replacing any existing value.
func (s *FileStore) Put(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}

	key := s.deriveKey(file.Salt, file.KDF)
	sealed, err := seal(key, []byte(value), name)
	if err != nil {
		return fmt.Errorf("encrypt secret %q: %w", name, err)
	}
	file.Entries[name] = sealed

	return s.save(file)
}

// Delete removes the named secret. Deleting a missing secret is not an error.
func (s *FileStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := file.Entries[name]; !ok {
		return nil
	}
	delete(file.Entries, name)
	return s.save(file)
}

func (s *FileStore) load() (*storeFile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		return &storeFile{
			Version: int(fileVersion),
			Salt:    salt,
			KDF:     s.kdf,
			Entries: map[string][]byte{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}
	if file.Version != int(fileVersion) {
		return nil, fmt.Errorf("secrets file version %d is not supported", file.Version)
	}
	if len(file.Salt) != saltSize {
		return nil, fmt.Errorf("secrets file has a %d byte salt, expected %d", len(file.Salt), saltSize)
	}
	if file.Entries == nil {
		file.Entries = map[string][]byte{}
	}
	return &file, nil
}

// save writes through a temporary file so a crash never leaves a torn store.
func (s *FileStore) save(file *storeFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode secrets file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create secrets directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".secrets-*")
	if err != nil {
		return fmt.Errorf("create temporary secrets file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("restrict secrets file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write secrets file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close secrets file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace secrets file: %w", err)
	}
	return nil
}

func (s *FileStore) deriveKey(salt []byte, params kdfParams) []byte {
	return argon2.IDKey(s.passphrase, salt, params.Time, params.Memory, params.Threads, keySize)
}

// seal returns version || nonce || ciphertext+tag.
func seal(key, plaintext []byte, name string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	out[0] = fileVersion
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(out, out[1:], plaintext, additionalData(name)), nil
}

func open(key, sealed []byte, name string) ([]byte, error) {
	if len(sealed) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("sealed value is %d bytes, too short", len(sealed))
	}
	if sealed[0] != fileVersion {
		return nil, fmt.Errorf("sealed value version %d is not supported", sealed[0])
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := sealed[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[1+chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData(name))
	if err != nil {
		return nil, fmt.Errorf("authentication failed (wrong passphrase or tampered file): %w", err)
	}
	return plaintext, nil
}

func additionalData(name string) []byte {
	return append([]byte{fileVersion}, name...)
}

func hostPassphrase() string {
	host, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	return "codetribute:" + host + ":" + home
}
