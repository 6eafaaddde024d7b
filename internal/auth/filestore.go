package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists rotated tokens as a JSON file so a new process can
// seed its token source with the last issued token instead of burning a
// refresh grant.
type FileStore struct {
	path string
}

var _ TokenStore = (*FileStore)(nil)

// NewFileStore returns a store writing to path. Parent directories are
// created on first store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// StoreToken replaces the persisted token. The file is written with 0600
// and swapped into place with a rename, since it holds a live credential
// and a reader may race a rotation.
func (f *FileStore) StoreToken(_ context.Context, token Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// LoadToken reads the persisted token. A missing file is not an error; it
// returns a zero token.
func (f *FileStore) LoadToken() (Token, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Token{}, nil
	}
	if err != nil {
		return Token{}, fmt.Errorf("read token file: %w", err)
	}
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return Token{}, fmt.Errorf("unmarshal token file: %w", err)
	}
	return token, nil
}
