package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStore is a filesystem-backed blob store. Payloads are written under Root
// and referenced by BaseURL-prefixed paths, so a stored photo is retrievable
// by any static file server pointed at Root.
type FSStore struct {
	root    string
	baseURL string
}

func NewFSStore(root, baseURL string) *FSStore {
	return &FSStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Put writes data under the given slash-separated path and returns its ref.
func (s *FSStore) Put(ctx context.Context, p string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.Contains(p, "..") {
		return "", errors.New("blob: invalid path")
	}
	clean := path.Clean("/" + p)[1:]
	if clean == "" {
		return "", errors.New("blob: invalid path")
	}
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("blob: write: %w", err)
	}
	return s.baseURL + "/" + clean, nil
}
