package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrNoToken = errors.New("backend token not set")

// Credentials holds the bearer token used against the backend. It is loaded
// explicitly with Hydrate and persisted to Path on Set.
type Credentials struct {
	Path string

	mu    sync.RWMutex
	token string
}

func NewCredentials(path string) *Credentials {
	return &Credentials{Path: path}
}

// Hydrate loads a previously persisted token. A missing file is not an error.
func (c *Credentials) Hydrate() error {
	if c.Path == "" {
		return nil
	}
	b, err := os.ReadFile(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	c.mu.Lock()
	c.token = strings.TrimSpace(string(b))
	c.mu.Unlock()
	return nil
}

func (c *Credentials) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoToken
	}
	if c.Path != "" {
		if dir := filepath.Dir(c.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("create token dir: %w", err)
			}
		}
		if err := os.WriteFile(c.Path, []byte(token), 0o600); err != nil {
			return fmt.Errorf("write token file: %w", err)
		}
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

func (c *Credentials) Clear() error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	if c.Path == "" {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (c *Credentials) Token() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", ErrNoToken
	}
	return c.token, nil
}
