package client

import (
	"os"
	"strings"
	"sync"
)

// TokenStore is the narrow capability holding the single session token.
// Absence means no prior session; the first successful send establishes the
// token from the server's response. No expiry, validation, or encryption.
type TokenStore interface {
	Get() (string, bool)
	Set(token string) error
}

// FileTokenStore keeps the token as the contents of one file, the CLI
// equivalent of the widget's localStorage key.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (fs *FileTokenStore) Get() (string, bool) {
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", false
	}
	return token, true
}

func (fs *FileTokenStore) Set(token string) error {
	return os.WriteFile(fs.path, []byte(token), 0o600)
}

// MemoryTokenStore holds the token in memory; handy for tests and embedding.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (ms *MemoryTokenStore) Get() (string, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.token, ms.token != ""
}

func (ms *MemoryTokenStore) Set(token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.token = token
	return nil
}
