package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestKeyFromURL(t *testing.T) {
	cases := []struct {
		url, prefix, want string
	}{
		{"https://x.supabase.co/storage/v1/object/public/work-orders/abc123.jpg", "", "abc123.jpg"},
		{"https://cdn.example.com/a/b/IMG%20001.png?token=xyz#frag", "uploads", "uploads/IMG 001.png"},
		{"/files/report.pdf", "/orders/", "orders/report.pdf"},
		{"plain-name.webp", "", "plain-name.webp"},
		{"https://cdn.example.com/dir/file.jpg/", "", "file.jpg"},
	}
	for _, tc := range cases {
		got, err := KeyFromURL(tc.url, tc.prefix)
		if err != nil {
			t.Fatalf("%s: %v", tc.url, err)
		}
		if got != tc.want {
			t.Fatalf("KeyFromURL(%q,%q)=%q want %q", tc.url, tc.prefix, got, tc.want)
		}
	}
	for _, bad := range []string{"", "   ", "https://cdn.example.com/"} {
		if _, err := KeyFromURL(bad, ""); !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("%q: expected invalid input, got %v", bad, err)
		}
	}
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "uploads"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "uploads", "a.jpg"), []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewLocalStore(root, "", quietLogger())
	ctx := context.Background()

	b, err := s.Download(ctx, "uploads/a.jpg")
	if err != nil || string(b) != "img" {
		t.Fatalf("download: %q %v", b, err)
	}
	if _, err := s.Download(ctx, "uploads/missing.jpg"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	// traversal stays inside root
	if _, err := s.Download(ctx, "../../etc/passwd"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found for traversal, got %v", err)
	}
	if got := s.PublicURL("uploads/a b.jpg"); got != "/files/uploads/a%20b.jpg" {
		t.Fatalf("public url=%q", got)
	}
}

func TestLocalStore_TooLarge(t *testing.T) {
	root := t.TempDir()
	f, err := os.Create(filepath.Join(root, "big.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxObjectBytes + 1); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	if _, err := NewLocalStore(root, "", quietLogger()).Download(context.Background(), "big.pdf"); !errors.Is(err, ErrObjectTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
}

func TestPublicBases(t *testing.T) {
	if got := ossPublicBase("signs", "cn-hangzhou"); got != "https://signs.oss-cn-hangzhou.aliyuncs.com" {
		t.Fatalf("oss base=%q", got)
	}
	o := NewOSSStore(common.StorageConfig{Bucket: "signs", Region: "cn-hangzhou", AccessKeyID: "id", AccessKeySecret: "secret"}, quietLogger())
	if got := o.PublicURL("uploads/x.png"); got != "https://signs.oss-cn-hangzhou.aliyuncs.com/uploads/x.png" {
		t.Fatalf("oss url=%q", got)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), common.StorageConfig{Backend: "ftp"}, nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
