package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

// MaxObjectBytes caps a single download; vision providers reject larger inline payloads anyway.
const MaxObjectBytes = 20 << 20

// ErrObjectTooLarge is returned when an object exceeds MaxObjectBytes.
var ErrObjectTooLarge = errors.New("object exceeds download size limit")

// ObjectStore is the object-storage surface the pipeline needs.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	PublicURL(key string) string
}

// KeyFromURL derives the storage key from the trailing path segment of a stored file URL.
// Query strings and fragments are ignored and the segment is unescaped.
func KeyFromURL(fileURL, prefix string) (string, error) {
	raw := strings.TrimSpace(fileURL)
	if raw == "" {
		return "", fmt.Errorf("empty file url: %w", common.ErrInvalidInput)
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
		if p == "" {
			p = u.Opaque
		}
	}
	p = strings.TrimRight(p, "/")
	seg := path.Base(p)
	if seg == "." || seg == "/" || seg == "" {
		return "", fmt.Errorf("no path segment in %q: %w", fileURL, common.ErrInvalidInput)
	}
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	return joinKey(prefix, seg), nil
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// New builds the backend named in the configuration.
func New(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL, logger), nil
	case "gcs":
		return NewGCSStore(ctx, cfg, logger)
	case "oss":
		return NewOSSStore(cfg, logger), nil
	}
	return nil, common.NewAppError(common.CodeConfigError, fmt.Sprintf("unknown storage backend %q", cfg.Backend), common.ErrInvalidInput)
}

func readAllLimited(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxObjectBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxObjectBytes {
		return nil, ErrObjectTooLarge
	}
	return b, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
