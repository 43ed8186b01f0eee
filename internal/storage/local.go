package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

// LocalStore serves objects from a directory. Used for local mode and tests.
type LocalStore struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

func NewLocalStore(root, publicBaseURL string, logger *slog.Logger) *LocalStore {
	if publicBaseURL == "" {
		publicBaseURL = "/files"
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(publicBaseURL, "/"), logger: logger}
}

func (s *LocalStore) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean("/" + key)
	full := filepath.Join(s.root, clean)
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %q: %w", key, common.ErrNotFound)
		}
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Warn("storage.local.close_error", "key", key, "error", cerr)
		}
	}()
	return readAllLimited(f)
}

func (s *LocalStore) PublicURL(key string) string {
	return s.baseURL + "/" + escapeKey(key)
}
